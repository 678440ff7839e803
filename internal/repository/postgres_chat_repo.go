package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/hitoshi/sponsorlink/internal/model"
)

// PostgresChatRepo はPostgreSQLを使用したチャットリポジトリ。
type PostgresChatRepo struct {
	db *sql.DB
}

// NewPostgresChatRepo はPostgresChatRepoを生成する。
func NewPostgresChatRepo(db *sql.DB) *PostgresChatRepo {
	return &PostgresChatRepo{db: db}
}

var chatRoomColumns = []string{
	"r.id", "r.organization_id", "r.company_id", "r.proposal_id", "r.last_message_at",
	"r.organization_unread_count", "r.company_unread_count", "r.created_at", "r.updated_at",
}

var chatMessageColumns = []string{
	"m.id", "m.seq", "m.chat_room_id", "m.sender_type", "m.sender_user_id",
	"m.sender_contact_id", "m.message", "m.read", "m.read_at", "m.created_at",
}

const chatMessageReturning = `id, seq, chat_room_id, sender_type, sender_user_id,
	sender_contact_id, message, read, read_at, created_at`

// unreadColumn は指定側が持つ未読数のカラム名を返す。
func unreadColumn(side model.UserType) string {
	if side == model.UserTypeCompany {
		return "company_unread_count"
	}
	return "organization_unread_count"
}

// recipientUnreadColumn は送信者種別に対して加算すべき受信側の未読数カラム名を返す。
func recipientUnreadColumn(sender model.SenderType) string {
	if sender == model.SenderTypeCompany {
		return "organization_unread_count"
	}
	return "company_unread_count"
}

// FindOrCreateRoom は(organizationID, companyID)のルームを返す。存在しなければ作成する。
// INSERT ... ON CONFLICT DO NOTHING の後に同じトランザクションで取得し直すため、
// 並行して呼ばれても作成されるルームは1件のみで、全呼び出しが同じルームを返す。
// 参照先の団体・企業・申請が存在しない場合はnilを返す。
func (r *PostgresChatRepo) FindOrCreateRoom(ctx context.Context, organizationID, companyID string, proposalID *string) (*model.ChatRoom, bool, error) {
	if !isUUID(organizationID) || !isUUID(companyID) {
		return nil, false, nil
	}
	if proposalID != nil && !isUUID(*proposalID) {
		return nil, false, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	created := true
	var insertedID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO chat_rooms (id, organization_id, company_id, proposal_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 ON CONFLICT (organization_id, company_id) DO NOTHING
		 RETURNING id`,
		uuid.New().String(), organizationID, companyID, proposalID,
	).Scan(&insertedID)
	switch {
	case err == sql.ErrNoRows:
		created = false
	case isForeignKeyViolation(err):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("failed to insert chat room: %w", err)
	}

	query, args, err := psql.Select(chatRoomColumns...).
		From("chat_rooms r").
		Where(sq.Eq{"r.organization_id": organizationID, "r.company_id": companyID}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("failed to build chat room query: %w", err)
	}

	room, err := scanChatRoom(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch chat room: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return room, created, nil
}

// FindRoomByID はルームを全メッセージ付きで取得する。見つからない場合はnilを返す。
func (r *PostgresChatRepo) FindRoomByID(ctx context.Context, id string) (*model.ChatRoom, error) {
	room, err := r.FindRoomSummaryByID(ctx, id)
	if err != nil || room == nil {
		return nil, err
	}

	messages, err := r.listMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	room.Messages = messages
	return room, nil
}

// FindRoomSummaryByID はメッセージを含まないルームを取得する。見つからない場合はnilを返す。
func (r *PostgresChatRepo) FindRoomSummaryByID(ctx context.Context, id string) (*model.ChatRoom, error) {
	if !isUUID(id) {
		return nil, nil
	}

	query, args, err := psql.Select(chatRoomColumns...).
		From("chat_rooms r").
		Where(sq.Eq{"r.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build chat room query: %w", err)
	}

	room, err := scanChatRoom(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find chat room: %w", err)
	}
	return room, nil
}

// listMessages はルームの全メッセージを作成日時の昇順（同時刻は挿入順）で返す。
func (r *PostgresChatRepo) listMessages(ctx context.Context, roomID string) ([]model.ChatMessage, error) {
	query, args, err := psql.Select(chatMessageColumns...).
		From("chat_messages m").
		Where(sq.Eq{"m.chat_room_id": roomID}).
		OrderBy("m.created_at ASC", "m.seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build chat message query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	messages := []model.ChatMessage{}
	for rows.Next() {
		m, err := scanChatMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat messages: %w", err)
	}
	return messages, nil
}

// ListRoomsByOrganizationID は団体のルーム一覧を最終メッセージ日時の降順で返す。
func (r *PostgresChatRepo) ListRoomsByOrganizationID(ctx context.Context, organizationID string) ([]*model.ChatRoom, error) {
	return r.listRooms(ctx, "r.organization_id", organizationID)
}

// ListRoomsByCompanyID は企業のルーム一覧を最終メッセージ日時の降順で返す。
func (r *PostgresChatRepo) ListRoomsByCompanyID(ctx context.Context, companyID string) ([]*model.ChatRoom, error) {
	return r.listRooms(ctx, "r.company_id", companyID)
}

// listRooms はルーム一覧を最新メッセージ1件のプレビュー付きで返す。
// メッセージのないルームは末尾に並ぶ。
func (r *PostgresChatRepo) listRooms(ctx context.Context, column, tenantID string) ([]*model.ChatRoom, error) {
	if !isUUID(tenantID) {
		return []*model.ChatRoom{}, nil
	}

	columns := append(append([]string{}, chatRoomColumns...), chatMessageColumns...)
	query, args, err := psql.Select(columns...).
		From("chat_rooms r").
		LeftJoin(`LATERAL (
			SELECT * FROM chat_messages lm
			WHERE lm.chat_room_id = r.id
			ORDER BY lm.created_at DESC, lm.seq DESC
			LIMIT 1
		) m ON TRUE`).
		Where(sq.Eq{column: tenantID}).
		OrderBy("r.last_message_at DESC NULLS LAST", "r.created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build chat room list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat rooms: %w", err)
	}
	defer rows.Close()

	rooms := []*model.ChatRoom{}
	for rows.Next() {
		room, err := scanChatRoomWithPreview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat rooms: %w", err)
	}
	return rooms, nil
}

// CreateMessage はメッセージを追記し、同一トランザクションでルームの最終メッセージ日時と
// 受信側の未読数を更新する。ルームが存在しない場合はnilを返す。
func (r *PostgresChatRepo) CreateMessage(ctx context.Context, params CreateMessageParams) (*model.ChatMessage, error) {
	if !isUUID(params.ChatRoomID) {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	msg, err := scanChatMessage(tx.QueryRowContext(ctx,
		`INSERT INTO chat_messages (id, chat_room_id, sender_type, sender_user_id, sender_contact_id, message, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())
		 RETURNING `+chatMessageReturning,
		uuid.New().String(), params.ChatRoomID, string(params.SenderType),
		params.SenderUserID, params.SenderContactID, params.Message,
	))
	if isForeignKeyViolation(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat message: %w", err)
	}

	// カウンタはストア側の式で加算する。最終メッセージ日時は後退させない。
	counter := recipientUnreadColumn(params.SenderType)
	_, err = tx.ExecContext(ctx,
		`UPDATE chat_rooms
		 SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2),
		     `+counter+` = `+counter+` + 1,
		     updated_at = NOW()
		 WHERE id = $1`,
		params.ChatRoomID, msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update chat room counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return msg, nil
}

// FindMessageByID は指定IDのメッセージを取得する。見つからない場合はnilを返す。
func (r *PostgresChatRepo) FindMessageByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	if !isUUID(id) {
		return nil, nil
	}
	return r.findMessage(ctx, r.db, id)
}

// queryRower は*sql.DBと*sql.Txの共通インターフェース。
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *PostgresChatRepo) findMessage(ctx context.Context, q queryRower, id string) (*model.ChatMessage, error) {
	query, args, err := psql.Select(chatMessageColumns...).
		From("chat_messages m").
		Where(sq.Eq{"m.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build chat message query: %w", err)
	}

	msg, err := scanChatMessage(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find chat message: %w", err)
	}
	return msg, nil
}

// MarkMessageRead はreaderSide宛てのメッセージを既読にする。
// 未読から既読への変化は条件付きUPDATEで判定し、変化した場合のみ同一トランザクションで
// readerSide側の未読数を0を下限に1減らす。既読済みの場合はカウンタを変更しない。
func (r *PostgresChatRepo) MarkMessageRead(ctx context.Context, messageID string, readerSide model.UserType) (*MarkReadResult, error) {
	if !isUUID(messageID) {
		return nil, nil
	}

	// 読み手が受け取る側のメッセージのみ対象にする
	incoming := model.SenderTypeUser
	if readerSide == model.UserTypeOrganization {
		incoming = model.SenderTypeCompany
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	msg, err := scanChatMessage(tx.QueryRowContext(ctx,
		`UPDATE chat_messages
		 SET read = TRUE, read_at = NOW()
		 WHERE id = $1 AND read = FALSE AND sender_type = $2
		 RETURNING `+chatMessageReturning,
		messageID, string(incoming),
	))
	if err == sql.ErrNoRows {
		existing, err := r.findMessage(ctx, tx, messageID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, nil
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return &MarkReadResult{Message: existing, Changed: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark chat message read: %w", err)
	}

	counter := unreadColumn(readerSide)
	_, err = tx.ExecContext(ctx,
		`UPDATE chat_rooms
		 SET `+counter+` = GREATEST(`+counter+` - 1, 0),
		     updated_at = NOW()
		 WHERE id = $1`,
		msg.ChatRoomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement unread count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &MarkReadResult{Message: msg, Changed: true}, nil
}

func scanChatRoom(row rowScanner) (*model.ChatRoom, error) {
	room := &model.ChatRoom{}
	var (
		proposalID    sql.NullString
		lastMessageAt sql.NullTime
	)
	if err := row.Scan(
		&room.ID, &room.OrganizationID, &room.CompanyID, &proposalID, &lastMessageAt,
		&room.OrganizationUnreadCount, &room.CompanyUnreadCount, &room.CreatedAt, &room.UpdatedAt,
	); err != nil {
		return nil, err
	}
	room.ProposalID = nullStringPtr(proposalID)
	room.LastMessageAt = nullTimePtr(lastMessageAt)
	room.Messages = []model.ChatMessage{}
	return room, nil
}

func scanChatMessage(row rowScanner) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{}
	var (
		senderType      string
		senderUserID    sql.NullString
		senderContactID sql.NullString
		readAt          sql.NullTime
	)
	if err := row.Scan(
		&msg.ID, &msg.Seq, &msg.ChatRoomID, &senderType, &senderUserID,
		&senderContactID, &msg.Message, &msg.Read, &readAt, &msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	msg.SenderType = model.SenderType(senderType)
	msg.SenderUserID = nullStringPtr(senderUserID)
	msg.SenderContactID = nullStringPtr(senderContactID)
	msg.ReadAt = nullTimePtr(readAt)
	return msg, nil
}

// scanChatRoomWithPreview はルームとLEFT JOINした最新メッセージ（存在しない場合はNULL）を読み取る。
func scanChatRoomWithPreview(row rowScanner) (*model.ChatRoom, error) {
	room := &model.ChatRoom{}
	var (
		proposalID      sql.NullString
		lastMessageAt   sql.NullTime
		msgID           sql.NullString
		msgSeq          sql.NullInt64
		msgRoomID       sql.NullString
		senderType      sql.NullString
		senderUserID    sql.NullString
		senderContactID sql.NullString
		message         sql.NullString
		read            sql.NullBool
		readAt          sql.NullTime
		createdAt       sql.NullTime
	)
	if err := row.Scan(
		&room.ID, &room.OrganizationID, &room.CompanyID, &proposalID, &lastMessageAt,
		&room.OrganizationUnreadCount, &room.CompanyUnreadCount, &room.CreatedAt, &room.UpdatedAt,
		&msgID, &msgSeq, &msgRoomID, &senderType, &senderUserID,
		&senderContactID, &message, &read, &readAt, &createdAt,
	); err != nil {
		return nil, err
	}
	room.ProposalID = nullStringPtr(proposalID)
	room.LastMessageAt = nullTimePtr(lastMessageAt)
	room.Messages = []model.ChatMessage{}
	if msgID.Valid {
		room.Messages = append(room.Messages, model.ChatMessage{
			ID:              msgID.String,
			Seq:             msgSeq.Int64,
			ChatRoomID:      msgRoomID.String,
			SenderType:      model.SenderType(senderType.String),
			SenderUserID:    nullStringPtr(senderUserID),
			SenderContactID: nullStringPtr(senderContactID),
			Message:         message.String,
			Read:            read.Bool,
			ReadAt:          nullTimePtr(readAt),
			CreatedAt:       createdAt.Time,
		})
	}
	return room, nil
}

// compile-time interface check
var _ ChatRepository = (*PostgresChatRepo)(nil)
