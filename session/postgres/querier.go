package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Querier определяет интерфейс, который абстрагирует выполнение SQL-запросов.
// Он совместим с *pgxpool.Pool, *pgx.Conn и pgx.Tx, что позволяет выполнять
// запросы как в рамках транзакции, так и без нее.
type Querier interface {
	// Query выполняет SQL-запрос и возвращает результат в виде pgx.Rows.
	// Для запросов без строк количество затронутых строк доступно через
	// CommandTag после закрытия pgx.Rows.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}
