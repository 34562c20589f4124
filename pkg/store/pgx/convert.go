package pgx

import (
	"strconv"

	"wdkg/pkg/kg"
)

func relTypeStrings(types []kg.RelationType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func entityTypeStrings(types []kg.EntityType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func docTypeStrings(types []kg.DocType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
