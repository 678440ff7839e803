package repository

import (
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// psql はPostgreSQLのプレースホルダ（$1, $2, ...）を使うクエリビルダー。
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgreSQLのエラーコード
const (
	pgErrCodeUniqueViolation     = "23505"
	pgErrCodeForeignKeyViolation = "23503"
)

var (
	// ErrDuplicate は一意制約違反により保存できなかったことを表す。
	ErrDuplicate = errors.New("duplicate key")
	// ErrReferenceNotFound は参照先のレコードが存在せず保存できなかったことを表す。
	ErrReferenceNotFound = errors.New("referenced record not found")
)

func hasPQCode(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}

// isUniqueViolation はerrがPostgreSQLの一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	return hasPQCode(err, pgErrCodeUniqueViolation)
}

// isForeignKeyViolation はerrがPostgreSQLの外部キー制約違反かどうかを判定する。
func isForeignKeyViolation(err error) bool {
	return hasPQCode(err, pgErrCodeForeignKeyViolation)
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}

// isUUID はidがUUIDとして解釈できるかどうかを返す。
// UUID列に不正な文字列を渡すとPostgreSQLが構文エラーを返すため、検索前に弾いて未検出扱いにする。
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
