package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarlinkco/prompt-registry/internal/template"
)

const defaultListLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	limits template.Limits
}

var (
	sqliteOpen = sql.Open
	timeNow    = time.Now
	newID      = uuid.NewString
)

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string, limits template.Limits) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqliteOpen("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// SQLite has a single writer; one connection serializes transactions and
	// keeps racing activations ordered instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, limits: limits}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			service_code TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			version INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			system_prompt TEXT NOT NULL DEFAULT '',
			user_prompt_template TEXT NOT NULL,
			temperature REAL NOT NULL,
			max_tokens INTEGER NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			output_schema TEXT,
			status TEXT NOT NULL,
			last_test_status TEXT,
			last_test_at INTEGER,
			parent_id TEXT,
			parent_version INTEGER,
			created_by TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			activated_by TEXT,
			activated_at INTEGER,
			UNIQUE(service_code, doc_type, version)
		)`,
		// At most one ACTIVE row per logical key, enforced by the engine
		// itself rather than left to callers.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_active
			ON templates(service_code, doc_type) WHERE status = 'ACTIVE'`,
		`CREATE INDEX IF NOT EXISTS idx_templates_key ON templates(service_code, doc_type)`,
		`CREATE INDEX IF NOT EXISTS idx_templates_status ON templates(status)`,
		`CREATE TABLE IF NOT EXISTS test_results (
			id TEXT PRIMARY KEY,
			template_id TEXT NOT NULL,
			status TEXT NOT NULL,
			execution_time_ms INTEGER NOT NULL,
			schema_validation_passed INTEGER NOT NULL,
			schema_validation_errors TEXT NOT NULL DEFAULT '[]',
			raw_output TEXT,
			parsed_output TEXT,
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			FOREIGN KEY(template_id) REFERENCES templates(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_test_results_template ON test_results(template_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			template_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			action TEXT NOT NULL,
			changes_summary TEXT NOT NULL DEFAULT '',
			performed_by TEXT NOT NULL,
			performed_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_template ON audit_log(template_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_performed_at ON audit_log(performed_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create validates and inserts a new DRAFT row. For a fresh logical key the
// version is 1; when the key already has rows the new draft continues the
// lineage at max(version)+1.
func (s *SQLiteStore) Create(ctx context.Context, req CreateRequest) (*template.PromptTemplate, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}

	now := timeNow().UTC()
	t := &template.PromptTemplate{
		ServiceCode:        strings.TrimSpace(req.ServiceCode),
		DocType:            strings.TrimSpace(req.DocType),
		Name:               strings.TrimSpace(req.Name),
		Description:        req.Description,
		SystemPrompt:       req.SystemPrompt,
		UserPromptTemplate: req.UserPromptTemplate,
		Temperature:        req.Temperature,
		MaxTokens:          req.MaxTokens,
		Tags:               req.Tags,
		OutputSchema:       req.OutputSchema,
		Status:             template.StatusDraft,
		CreatedBy:          actorOrDefault(req.CreatedBy),
		CreatedAt:          now,
	}
	if violations := template.ValidateContent(t, s.limits); len(violations) > 0 {
		return nil, template.NewValidationError(violations...)
	}
	t.ID = newID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxVersion sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM templates WHERE service_code = ? AND doc_type = ?`,
		t.ServiceCode, t.DocType,
	).Scan(&maxVersion)
	if err != nil {
		return nil, fmt.Errorf("store: read max version: %w", err)
	}
	t.Version = int(maxVersion.Int64) + 1

	if err := insertTemplate(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := insertAudit(ctx, tx, &template.AuditEntry{
		TemplateID:     t.ID,
		Version:        t.Version,
		Action:         template.ActionCreated,
		ChangesSummary: fmt.Sprintf("created draft version %d for %s/%s", t.Version, t.ServiceCode, t.DocType),
		PerformedBy:    t.CreatedBy,
		PerformedAt:    now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return t, nil
}

// Update edits a DRAFT row in place. On a TESTED, ACTIVE or DEPRECATED row it
// forks a new DRAFT continuing the lineage at max(version)+1 and leaves the
// original untouched. ARCHIVED rows are not editable.
func (s *SQLiteStore) Update(ctx context.Context, id string, req UpdateRequest) (*template.PromptTemplate, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := getTemplateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == template.StatusArchived {
		return nil, &template.PreconditionError{Op: "update", Reason: "archived templates are not editable"}
	}

	now := timeNow().UTC()
	actor := actorOrDefault(req.UpdatedBy)

	if template.Editable(cur.Status) {
		changed := applyPatch(cur, req)
		if violations := template.ValidateContent(cur, s.limits); len(violations) > 0 {
			return nil, template.NewValidationError(violations...)
		}
		if err := updateTemplateContent(ctx, tx, cur); err != nil {
			return nil, err
		}
		if err := insertAudit(ctx, tx, &template.AuditEntry{
			TemplateID:     cur.ID,
			Version:        cur.Version,
			Action:         template.ActionEdited,
			ChangesSummary: editSummary(changed),
			PerformedBy:    actor,
			PerformedAt:    now,
		}); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("store: commit: %w", err)
		}
		return cur, nil
	}

	// Fork: copy content, apply the patch, continue the version lineage.
	fork := *cur
	fork.ID = newID()
	fork.Status = template.StatusDraft
	fork.ParentID = cur.ID
	fork.ParentVersion = cur.Version
	fork.LastTestStatus = ""
	fork.LastTestAt = nil
	fork.ActivatedBy = ""
	fork.ActivatedAt = nil
	fork.CreatedBy = actor
	fork.CreatedAt = now

	changed := applyPatch(&fork, req)
	if violations := template.ValidateContent(&fork, s.limits); len(violations) > 0 {
		return nil, template.NewValidationError(violations...)
	}

	var maxVersion sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM templates WHERE service_code = ? AND doc_type = ?`,
		fork.ServiceCode, fork.DocType,
	).Scan(&maxVersion)
	if err != nil {
		return nil, fmt.Errorf("store: read max version: %w", err)
	}
	fork.Version = int(maxVersion.Int64) + 1

	if err := insertTemplate(ctx, tx, &fork); err != nil {
		return nil, err
	}
	if err := insertAudit(ctx, tx, &template.AuditEntry{
		TemplateID:     fork.ID,
		Version:        fork.Version,
		Action:         template.ActionEdited,
		ChangesSummary: fmt.Sprintf("forked draft version %d from version %d; %s", fork.Version, cur.Version, editSummary(changed)),
		PerformedBy:    actor,
		PerformedAt:    now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return &fork, nil
}

// MarkTested moves a DRAFT row with a passing latest test to TESTED.
func (s *SQLiteStore) MarkTested(ctx context.Context, id, actor string) (*template.PromptTemplate, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := getTemplateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != template.StatusDraft {
		return nil, &template.PreconditionError{
			Op:     "mark-tested",
			Reason: fmt.Sprintf("template must be status=DRAFT to mark tested, currently %s", cur.Status),
		}
	}
	if cur.LastTestStatus != template.TestStatusPassed {
		return nil, &template.PreconditionError{
			Op:     "mark-tested",
			Reason: "template has no passing test result",
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE templates SET status = ? WHERE id = ? AND status = ?`,
		template.StatusTested, id, template.StatusDraft,
	)
	if err != nil {
		return nil, fmt.Errorf("store: mark tested: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &template.PreconditionError{Op: "mark-tested", Reason: "template left DRAFT concurrently"}
	}
	cur.Status = template.StatusTested

	now := timeNow().UTC()
	if err := insertAudit(ctx, tx, &template.AuditEntry{
		TemplateID:     cur.ID,
		Version:        cur.Version,
		Action:         template.ActionMarkedTested,
		ChangesSummary: fmt.Sprintf("version %d marked tested", cur.Version),
		PerformedBy:    actorOrDefault(actor),
		PerformedAt:    now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return cur, nil
}

// Activate promotes a TESTED row to ACTIVE and deprecates the current ACTIVE
// row for the same logical key, in one transaction. The status checks run as
// conditional updates so the second of two racing activations fails with a
// precondition error instead of leaving two ACTIVE rows.
func (s *SQLiteStore) Activate(ctx context.Context, id, reason, actor string) (*template.PromptTemplate, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if err := template.ValidateActivationReason(reason, s.limits); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := getTemplateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != template.StatusTested {
		return nil, &template.PreconditionError{
			Op:     "activate",
			Reason: fmt.Sprintf("template must be status=TESTED to activate, currently %s", cur.Status),
		}
	}

	var prevID string
	var prevVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT id, version FROM templates
		 WHERE service_code = ? AND doc_type = ? AND status = ?`,
		cur.ServiceCode, cur.DocType, template.StatusActive,
	).Scan(&prevID, &prevVersion)
	switch {
	case err == nil:
		res, err := tx.ExecContext(ctx,
			`UPDATE templates SET status = ? WHERE id = ? AND status = ?`,
			template.StatusDeprecated, prevID, template.StatusActive,
		)
		if err != nil {
			return nil, fmt.Errorf("store: deprecate previous: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, &template.PreconditionError{Op: "activate", Reason: "previous active template changed concurrently"}
		}
	case errors.Is(err, sql.ErrNoRows):
		// First activation for this key.
	default:
		return nil, fmt.Errorf("store: find active: %w", err)
	}

	now := timeNow().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE templates SET status = ?, activated_by = ?, activated_at = ?
		 WHERE id = ? AND status = ?`,
		template.StatusActive, actorOrDefault(actor), now.UnixMilli(), id, template.StatusTested,
	)
	if err != nil {
		return nil, fmt.Errorf("store: activate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &template.PreconditionError{Op: "activate", Reason: "template left TESTED concurrently"}
	}

	summary := fmt.Sprintf("activated version %d: %s", cur.Version, strings.TrimSpace(reason))
	if prevID != "" {
		summary += fmt.Sprintf(" (deprecated version %d)", prevVersion)
	}
	if err := insertAudit(ctx, tx, &template.AuditEntry{
		TemplateID:     cur.ID,
		Version:        cur.Version,
		Action:         template.ActionActivated,
		ChangesSummary: summary,
		PerformedBy:    actorOrDefault(actor),
		PerformedAt:    now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}

	cur.Status = template.StatusActive
	cur.ActivatedBy = actorOrDefault(actor)
	cur.ActivatedAt = &now
	return cur, nil
}

// Archive moves a non-ACTIVE row to the terminal ARCHIVED state. The current
// ACTIVE row must be superseded by a new activation first; this is a safety
// rail, not an oversight.
func (s *SQLiteStore) Archive(ctx context.Context, id, actor string) error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := getTemplateTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if cur.Status == template.StatusActive {
		return &template.PreconditionError{
			Op:     "archive",
			Reason: "cannot archive the active template; activate a replacement first",
		}
	}
	if err := template.ValidateTransition(cur.Status, template.StatusArchived); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE templates SET status = ? WHERE id = ? AND status = ?`,
		template.StatusArchived, id, cur.Status,
	)
	if err != nil {
		return fmt.Errorf("store: archive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &template.PreconditionError{Op: "archive", Reason: "template status changed concurrently"}
	}

	if err := insertAudit(ctx, tx, &template.AuditEntry{
		TemplateID:     cur.ID,
		Version:        cur.Version,
		Action:         template.ActionArchived,
		ChangesSummary: fmt.Sprintf("version %d archived (was %s)", cur.Version, cur.Status),
		PerformedBy:    actorOrDefault(actor),
		PerformedAt:    timeNow().UTC(),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// RecordTestResult persists one test execution and refreshes the template's
// last-test fields. It never changes the row's status, so a template archived
// while its test was in flight keeps the result for audit purposes without
// becoming editable again.
func (s *SQLiteStore) RecordTestResult(ctx context.Context, result *template.TestResult, actor string) error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}
	if result == nil {
		return errors.New("store: nil test result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := getTemplateTx(ctx, tx, result.TemplateID)
	if err != nil {
		return err
	}

	if result.ID == "" {
		result.ID = newID()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = timeNow().UTC()
	}

	errsJSON, err := json.Marshal(result.SchemaValidationErrors)
	if err != nil {
		return fmt.Errorf("store: encode validation errors: %w", err)
	}
	var parsedJSON any
	if result.ParsedOutput != nil {
		b, err := json.Marshal(result.ParsedOutput)
		if err != nil {
			return fmt.Errorf("store: encode parsed output: %w", err)
		}
		parsedJSON = string(b)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO test_results (
			id, template_id, status, execution_time_ms, schema_validation_passed,
			schema_validation_errors, raw_output, parsed_output, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.TemplateID, result.Status, result.ExecutionTimeMs,
		boolToInt(result.SchemaValidationPassed), string(errsJSON),
		nullString(result.RawOutput), parsedJSON, result.Error, result.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert test result: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE templates SET last_test_status = ?, last_test_at = ? WHERE id = ?`,
		result.Status, result.CreatedAt.UnixMilli(), result.TemplateID,
	)
	if err != nil {
		return fmt.Errorf("store: update last test: %w", err)
	}

	action := template.ActionTestFailed
	summary := fmt.Sprintf("test failed in %dms", result.ExecutionTimeMs)
	if result.Status == template.TestStatusPassed {
		action = template.ActionTestPassed
		summary = fmt.Sprintf("test passed in %dms", result.ExecutionTimeMs)
	} else if n := len(result.SchemaValidationErrors); n > 0 {
		summary = fmt.Sprintf("test failed: %d validation error(s)", n)
	} else if result.Error != "" {
		summary = fmt.Sprintf("test failed: %s", result.Error)
	}
	if err := insertAudit(ctx, tx, &template.AuditEntry{
		TemplateID:     cur.ID,
		Version:        cur.Version,
		Action:         action,
		ChangesSummary: summary,
		PerformedBy:    actorOrDefault(actor),
		PerformedAt:    result.CreatedAt,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Get returns the template with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*template.PromptTemplate, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	row := s.db.QueryRowContext(ctx, selectTemplateSQL+` WHERE id = ?`, id)
	return scanTemplate(row, id)
}

// GetActive returns the single ACTIVE template for the logical key, served by
// the partial index rather than a scan.
func (s *SQLiteStore) GetActive(ctx context.Context, serviceCode, docType string) (*template.PromptTemplate, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	row := s.db.QueryRowContext(ctx,
		selectTemplateSQL+` WHERE service_code = ? AND doc_type = ? AND status = ?`,
		strings.TrimSpace(serviceCode), strings.TrimSpace(docType), template.StatusActive,
	)
	return scanTemplate(row, fmt.Sprintf("%s/%s", serviceCode, docType))
}

// List returns templates matching the filter, newest lineage first. ARCHIVED
// rows are excluded from default listings.
func (s *SQLiteStore) List(ctx context.Context, filter TemplateFilter) ([]*template.PromptTemplate, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}

	query := selectTemplateSQL + ` WHERE 1=1`
	args := make([]any, 0, 6)

	if v := strings.TrimSpace(filter.ServiceCode); v != "" {
		query += ` AND service_code = ?`
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.DocType); v != "" {
		query += ` AND doc_type = ?`
		args = append(args, v)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	} else if !filter.IncludeArchived {
		query += ` AND status != ?`
		args = append(args, template.StatusArchived)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` ORDER BY service_code, doc_type, version DESC LIMIT ? OFFSET ?`
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	defer rows.Close()

	var out []*template.PromptTemplate
	for rows.Next() {
		t, err := scanTemplate(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LastTestResult returns the most recent test result for a template, or nil
// when it has never been tested.
func (s *SQLiteStore) LastTestResult(ctx context.Context, templateID string) (*template.TestResult, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}

	var (
		r          template.TestResult
		passed     int
		errsJSON   string
		rawOutput  sql.NullString
		parsedJSON sql.NullString
		createdAt  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, template_id, status, execution_time_ms, schema_validation_passed,
		        schema_validation_errors, raw_output, parsed_output, error, created_at
		 FROM test_results WHERE template_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		templateID,
	).Scan(&r.ID, &r.TemplateID, &r.Status, &r.ExecutionTimeMs, &passed,
		&errsJSON, &rawOutput, &parsedJSON, &r.Error, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: last test result: %w", err)
	}

	r.SchemaValidationPassed = passed != 0
	r.RawOutput = rawOutput.String
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	if errsJSON != "" {
		if err := json.Unmarshal([]byte(errsJSON), &r.SchemaValidationErrors); err != nil {
			return nil, fmt.Errorf("store: decode validation errors: %w", err)
		}
	}
	if parsedJSON.Valid && parsedJSON.String != "" {
		if err := json.Unmarshal([]byte(parsedJSON.String), &r.ParsedOutput); err != nil {
			return nil, fmt.Errorf("store: decode parsed output: %w", err)
		}
	}
	return &r, nil
}

// ListAudit returns audit entries newest first.
func (s *SQLiteStore) ListAudit(ctx context.Context, filter AuditFilter) ([]*template.AuditEntry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}

	query := `SELECT id, template_id, version, action, changes_summary, performed_by, performed_at
	          FROM audit_log WHERE 1=1`
	args := make([]any, 0, 4)

	if v := strings.TrimSpace(filter.TemplateID); v != "" {
		query += ` AND template_id = ?`
		args = append(args, v)
	}
	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, filter.Action)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` ORDER BY performed_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list audit: %w", err)
	}
	defer rows.Close()

	var out []*template.AuditEntry
	for rows.Next() {
		var e template.AuditEntry
		var performedAt int64
		if err := rows.Scan(&e.ID, &e.TemplateID, &e.Version, &e.Action, &e.ChangesSummary, &e.PerformedBy, &performedAt); err != nil {
			return nil, fmt.Errorf("store: scan audit: %w", err)
		}
		e.PerformedAt = time.UnixMilli(performedAt).UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Overview aggregates counts by status, distinct logical keys, and the number
// of tests executed in the trailing 24 hours.
func (s *SQLiteStore) Overview(ctx context.Context, now time.Time) (*Stats, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if now.IsZero() {
		now = timeNow().UTC()
	}

	stats := &Stats{ByStatus: make(map[template.Status]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM templates GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("store: overview statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status template.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("store: scan overview: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (SELECT DISTINCT service_code, doc_type FROM templates)`,
	).Scan(&stats.LogicalKeys)
	if err != nil {
		return nil, fmt.Errorf("store: overview keys: %w", err)
	}

	since := now.Add(-24 * time.Hour).UnixMilli()
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE action IN (?, ?) AND performed_at >= ?`,
		template.ActionTestPassed, template.ActionTestFailed, since,
	).Scan(&stats.TestsLast24h)
	if err != nil {
		return nil, fmt.Errorf("store: overview tests: %w", err)
	}

	return stats, nil
}

const selectTemplateSQL = `SELECT id, service_code, doc_type, version, name, description,
	system_prompt, user_prompt_template, temperature, max_tokens, tags, output_schema,
	status, last_test_status, last_test_at, parent_id, parent_version,
	created_by, created_at, activated_by, activated_at
	FROM templates`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner, ref string) (*template.PromptTemplate, error) {
	var (
		t              template.PromptTemplate
		tagsJSON       string
		schemaJSON     sql.NullString
		lastTestStatus sql.NullString
		lastTestAt     sql.NullInt64
		parentID       sql.NullString
		parentVersion  sql.NullInt64
		createdAt      int64
		activatedBy    sql.NullString
		activatedAt    sql.NullInt64
	)

	err := row.Scan(&t.ID, &t.ServiceCode, &t.DocType, &t.Version, &t.Name, &t.Description,
		&t.SystemPrompt, &t.UserPromptTemplate, &t.Temperature, &t.MaxTokens, &tagsJSON, &schemaJSON,
		&t.Status, &lastTestStatus, &lastTestAt, &parentID, &parentVersion,
		&t.CreatedBy, &createdAt, &activatedBy, &activatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &template.NotFoundError{ID: ref}
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan template: %w", err)
	}

	if tagsJSON != "" && tagsJSON != "[]" {
		if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
			return nil, fmt.Errorf("store: decode tags: %w", err)
		}
	}
	if schemaJSON.Valid && schemaJSON.String != "" {
		var schema template.OutputSchema
		if err := json.Unmarshal([]byte(schemaJSON.String), &schema); err != nil {
			return nil, fmt.Errorf("store: decode output schema: %w", err)
		}
		t.OutputSchema = &schema
	}
	t.LastTestStatus = template.TestStatus(lastTestStatus.String)
	if lastTestAt.Valid {
		ts := time.UnixMilli(lastTestAt.Int64).UTC()
		t.LastTestAt = &ts
	}
	t.ParentID = parentID.String
	t.ParentVersion = int(parentVersion.Int64)
	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	t.ActivatedBy = activatedBy.String
	if activatedAt.Valid {
		ts := time.UnixMilli(activatedAt.Int64).UTC()
		t.ActivatedAt = &ts
	}
	return &t, nil
}

func getTemplateTx(ctx context.Context, tx *sql.Tx, id string) (*template.PromptTemplate, error) {
	row := tx.QueryRowContext(ctx, selectTemplateSQL+` WHERE id = ?`, id)
	return scanTemplate(row, id)
}

func insertTemplate(ctx context.Context, tx *sql.Tx, t *template.PromptTemplate) error {
	tagsJSON, err := json.Marshal(emptyIfNil(t.Tags))
	if err != nil {
		return fmt.Errorf("store: encode tags: %w", err)
	}
	var schemaJSON any
	if t.OutputSchema != nil {
		b, err := json.Marshal(t.OutputSchema)
		if err != nil {
			return fmt.Errorf("store: encode output schema: %w", err)
		}
		schemaJSON = string(b)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO templates (
			id, service_code, doc_type, version, name, description,
			system_prompt, user_prompt_template, temperature, max_tokens, tags, output_schema,
			status, parent_id, parent_version, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ServiceCode, t.DocType, t.Version, t.Name, t.Description,
		t.SystemPrompt, t.UserPromptTemplate, t.Temperature, t.MaxTokens, string(tagsJSON), schemaJSON,
		t.Status, nullString(t.ParentID), nullInt(t.ParentVersion), t.CreatedBy, t.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert template: %w", err)
	}
	return nil
}

func updateTemplateContent(ctx context.Context, tx *sql.Tx, t *template.PromptTemplate) error {
	tagsJSON, err := json.Marshal(emptyIfNil(t.Tags))
	if err != nil {
		return fmt.Errorf("store: encode tags: %w", err)
	}
	var schemaJSON any
	if t.OutputSchema != nil {
		b, err := json.Marshal(t.OutputSchema)
		if err != nil {
			return fmt.Errorf("store: encode output schema: %w", err)
		}
		schemaJSON = string(b)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE templates SET
			name = ?, description = ?, system_prompt = ?, user_prompt_template = ?,
			temperature = ?, max_tokens = ?, tags = ?, output_schema = ?
		 WHERE id = ? AND status = ?`,
		t.Name, t.Description, t.SystemPrompt, t.UserPromptTemplate,
		t.Temperature, t.MaxTokens, string(tagsJSON), schemaJSON,
		t.ID, template.StatusDraft,
	)
	if err != nil {
		return fmt.Errorf("store: update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &template.PreconditionError{Op: "update", Reason: "template left DRAFT concurrently"}
	}
	return nil
}

func insertAudit(ctx context.Context, tx *sql.Tx, e *template.AuditEntry) error {
	if e.ID == "" {
		e.ID = newID()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, template_id, version, action, changes_summary, performed_by, performed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TemplateID, e.Version, e.Action, e.ChangesSummary, e.PerformedBy, e.PerformedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert audit: %w", err)
	}
	return nil
}

func applyPatch(t *template.PromptTemplate, req UpdateRequest) []string {
	var changed []string
	if req.Name != nil && *req.Name != t.Name {
		t.Name = *req.Name
		changed = append(changed, "name")
	}
	if req.Description != nil && *req.Description != t.Description {
		t.Description = *req.Description
		changed = append(changed, "description")
	}
	if req.SystemPrompt != nil && *req.SystemPrompt != t.SystemPrompt {
		t.SystemPrompt = *req.SystemPrompt
		changed = append(changed, "system_prompt")
	}
	if req.UserPromptTemplate != nil && *req.UserPromptTemplate != t.UserPromptTemplate {
		t.UserPromptTemplate = *req.UserPromptTemplate
		changed = append(changed, "user_prompt_template")
	}
	if req.Temperature != nil && *req.Temperature != t.Temperature {
		t.Temperature = *req.Temperature
		changed = append(changed, "temperature")
	}
	if req.MaxTokens != nil && *req.MaxTokens != t.MaxTokens {
		t.MaxTokens = *req.MaxTokens
		changed = append(changed, "max_tokens")
	}
	if req.Tags != nil {
		t.Tags = *req.Tags
		changed = append(changed, "tags")
	}
	if req.OutputSchema != nil {
		t.OutputSchema = req.OutputSchema
		changed = append(changed, "output_schema")
	}
	return changed
}

func editSummary(changed []string) string {
	if len(changed) == 0 {
		return "no fields changed"
	}
	return "changed: " + strings.Join(changed, ", ")
}

func actorOrDefault(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "admin"
	}
	return actor
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func emptyIfNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
