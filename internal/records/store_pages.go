package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AddPage inserts a page for a record.
func (s *Store) AddPage(ctx context.Context, page *Page) (*Page, error) {
	if page == nil {
		return nil, errors.New("page is nil")
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO pages (record_id, page_order, noid, identifier, source)
         VALUES (?, ?, ?, ?, ?)`,
		page.RecordID,
		page.Order,
		nullableString(page.NOID),
		nullableString(page.Identifier),
		nullableString(page.Source),
	)
	if err != nil {
		return nil, fmt.Errorf("insert page: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	page.ID = id
	return page, nil
}

// PagesForRecord returns a record's pages in ascending order.
func (s *Store) PagesForRecord(ctx context.Context, recordID int64) ([]*Page, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, record_id, page_order, noid, identifier, source FROM pages WHERE record_id = ? ORDER BY page_order`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// UpdatePage persists changes to a page's identifier fields.
func (s *Store) UpdatePage(ctx context.Context, page *Page) error {
	if page == nil {
		return errors.New("page is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE pages SET page_order = ?, noid = ?, identifier = ?, source = ? WHERE id = ?`,
		page.Order,
		nullableString(page.NOID),
		nullableString(page.Identifier),
		nullableString(page.Source),
		page.ID,
	)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	return nil
}

const stepColumns = "id, record_id, step_type, step_order, mode, human_validation, status, log, updated_at"

func scanStep(scanner interface{ Scan(dest ...any) error }) (*Step, error) {
	var (
		id              int64
		recordID        int64
		stepType        string
		order           int
		mode            string
		humanValidation sql.NullInt64
		statusStr       string
		logMsg          sql.NullString
		updatedRaw      sql.NullString
	)
	if err := scanner.Scan(&id, &recordID, &stepType, &order, &mode, &humanValidation, &statusStr, &logMsg, &updatedRaw); err != nil {
		return nil, err
	}
	step := &Step{
		ID:       id,
		RecordID: recordID,
		Type:     StepType(stepType),
		Order:    order,
		Mode:     Mode(mode),
		Status:   Status(statusStr),
		Log:      logMsg.String,
	}
	if humanValidation.Valid {
		step.HumanValidation = humanValidation.Int64 != 0
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		step.UpdatedAt = updated
	}
	return step, nil
}

func scanPage(scanner interface{ Scan(dest ...any) error }) (*Page, error) {
	var (
		id         int64
		recordID   int64
		order      int
		noid       sql.NullString
		identifier sql.NullString
		source     sql.NullString
	)
	if err := scanner.Scan(&id, &recordID, &order, &noid, &identifier, &source); err != nil {
		return nil, err
	}
	return &Page{
		ID:         id,
		RecordID:   recordID,
		Order:      order,
		NOID:       noid.String,
		Identifier: identifier.String,
		Source:     source.String,
	}, nil
}
