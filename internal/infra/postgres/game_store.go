package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"livequiz-service/internal/domain"
)

// GameStore persists session and player records in Postgres. Each update
// touches a single row keyed by its ID; the session runner is the only
// writer, so plain statements are enough.
type GameStore struct {
	pool *pgxpool.Pool
}

func NewGameStore(pool *pgxpool.Pool) *GameStore {
	return &GameStore{pool: pool}
}

func (s *GameStore) CreateSession(ctx context.Context, session domain.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO game_sessions (id, join_code, quiz_id, status, current_question_index, host_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.JoinCode, session.QuizID, string(session.Status), session.CurrentQuestionIndex, session.HostID)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *GameStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.scanSession(s.pool.QueryRow(ctx,
		`SELECT id, join_code, quiz_id, status, current_question_index, host_id
		 FROM game_sessions WHERE id=$1`, sessionID))
}

func (s *GameStore) GetSessionByCode(ctx context.Context, joinCode string) (domain.Session, error) {
	return s.scanSession(s.pool.QueryRow(ctx,
		`SELECT id, join_code, quiz_id, status, current_question_index, host_id
		 FROM game_sessions WHERE join_code=$1`, joinCode))
}

func (s *GameStore) scanSession(row pgx.Row) (domain.Session, error) {
	var session domain.Session
	var status string
	err := row.Scan(&session.ID, &session.JoinCode, &session.QuizID, &status, &session.CurrentQuestionIndex, &session.HostID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	session.Status = domain.SessionStatus(status)
	return session, nil
}

func (s *GameStore) UpdateSessionStatus(ctx context.Context, sessionID string, from, to domain.SessionStatus) error {
	// The status predicate makes the transition a compare-and-set, so two
	// concurrent activations resolve to a single winner at the database.
	tag, err := s.pool.Exec(ctx,
		`UPDATE game_sessions SET status=$3 WHERE id=$1 AND status=$2`,
		sessionID, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM game_sessions WHERE id=$1)`, sessionID).Scan(&exists); err != nil {
			return fmt.Errorf("update session status: %w", err)
		}
		if !exists {
			return domain.ErrSessionNotFound
		}
		return domain.ErrStatusConflict
	}
	return nil
}

func (s *GameStore) UpdateSessionQuestionIndex(ctx context.Context, sessionID string, index int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE game_sessions SET current_question_index=$2 WHERE id=$1`,
		sessionID, index)
	if err != nil {
		return fmt.Errorf("update question index: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *GameStore) CreatePlayer(ctx context.Context, player domain.Player) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO players (id, session_id, name, score, last_answer_status, correct_count, wrong_count)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		player.ID, player.SessionID, player.Name, player.Score, string(player.LastAnswerStatus), player.CorrectCount, player.WrongCount)
	if err != nil {
		return fmt.Errorf("create player: %w", err)
	}
	return nil
}

func (s *GameStore) GetPlayer(ctx context.Context, playerID string) (domain.Player, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, session_id, name, score, COALESCE(last_answer_status, ''), correct_count, wrong_count
		 FROM players WHERE id=$1`, playerID)
	player, err := scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return player, err
}

func (s *GameStore) ListPlayers(ctx context.Context, sessionID string) ([]domain.Player, error) {
	// seq preserves join order; leaderboard ties stay stable by it.
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, name, score, COALESCE(last_answer_status, ''), correct_count, wrong_count
		 FROM players WHERE session_id=$1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, player)
	}
	return players, rows.Err()
}

func (s *GameStore) UpdatePlayerResult(ctx context.Context, player domain.Player) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE players
		 SET score=$2, last_answer_status=NULLIF($3, ''), correct_count=$4, wrong_count=$5
		 WHERE id=$1`,
		player.ID, player.Score, string(player.LastAnswerStatus), player.CorrectCount, player.WrongCount)
	if err != nil {
		return fmt.Errorf("update player result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}

func (s *GameStore) ClearAnswerStatuses(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE players SET last_answer_status=NULL WHERE session_id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("clear answer statuses: %w", err)
	}
	return nil
}

func scanPlayer(row pgx.Row) (domain.Player, error) {
	var player domain.Player
	var status string
	err := row.Scan(&player.ID, &player.SessionID, &player.Name, &player.Score, &status, &player.CorrectCount, &player.WrongCount)
	if err != nil {
		return domain.Player{}, err
	}
	player.LastAnswerStatus = domain.AnswerStatus(status)
	return player, nil
}
