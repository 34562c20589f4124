package middleware

import (
	"wdkg/internal/config"
	"wdkg/pkg/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

type App struct {
	DBConn *pgxpool.Pool
	Queue  *amqp091.Channel
	Store  store.GraphStore
	Config *config.Config
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(
	db *pgxpool.Pool,
	queue *amqp091.Channel,
	graphStore store.GraphStore,
	cfg *config.Config,
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			app := &App{
				DBConn: db,
				Queue:  queue,
				Store:  graphStore,
				Config: cfg,
			}
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
