package membership

import (
	"context"
	"database/sql"
	"errors"
)

// Store reads the directory tables owned by the surrounding product.
type Store struct {
	DB *sql.DB
}

func (s *Store) ListAcceptedMembers(ctx context.Context, ownerID string) ([]Member, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT m.user_id, m.display_name, m.external_id
		FROM member_links l
		JOIN members m ON m.user_id = l.member_id
		WHERE l.owner_id = $1
		ORDER BY m.display_name
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var externalID sql.NullString
		if err := rows.Scan(&m.UserID, &m.DisplayName, &externalID); err != nil {
			return nil, err
		}
		m.ExternalID = externalID.String
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) Lookup(ctx context.Context, userID string) (*Member, error) {
	var m Member
	var externalID sql.NullString
	err := s.DB.QueryRowContext(ctx, `
		SELECT user_id, display_name, external_id
		FROM members
		WHERE user_id = $1
	`, userID).Scan(&m.UserID, &m.DisplayName, &externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	m.ExternalID = externalID.String
	return &m, nil
}
