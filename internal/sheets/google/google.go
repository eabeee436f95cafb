// Package google exports ledger rows to a Google Sheets spreadsheet using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "finora/internal/sheets"
)

const (
	defaultSheetBase     = "Transactions"
	defaultIndexValidity = 2 * time.Minute
	// idColumn is the zero-based column holding the transaction id.
	idColumn = 7
)

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID string
	// SheetName is the base name; each row goes to "<year> <base>".
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client appends transactions to year-prefixed sheets. It remembers which
// transaction ids each sheet already holds, and the next free row, for a
// short time so a burst of exports needs one read per sheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	cacheValidDuration time.Duration
	now                func() time.Time

	mu      sync.Mutex
	indexes map[string]*sheetIndex
}

type sheetIndex struct {
	refs      map[string]string
	rowCount  int
	expiresAt time.Time
}

var _ ports.TransactionExporter = (*Client)(nil)

// New creates a client authenticated with the service account in cfg.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := serviceAccountCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.SheetName)
	return newClient(svc, cfg), nil
}

func newClient(svc *gsheet.Service, cfg Config) *Client {
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = defaultSheetBase
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      strings.TrimSpace(cfg.SpreadsheetID),
		sheetBase:          base,
		cacheValidDuration: defaultIndexValidity,
		now:                time.Now,
		indexes:            make(map[string]*sheetIndex),
	}
}

func serviceAccountCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// Export writes r to the next free row of its year's sheet.
func (c *Client) Export(ctx context.Context, r ports.Row) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.sheetBase, r.Date.Year())

	// Row allocation must be serialised.
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.indexLocked(ctx, sheet)
	if err != nil {
		return "", err
	}
	if ref, ok := idx.refs[r.TransactionID]; ok {
		slog.DebugContext(ctx, "Transaction already exported", "transaction_id", r.TransactionID, "ref", ref)
		return ref, nil
	}

	row := idx.rowCount + 1
	ref := rowRange(sheet, row)
	vr := &gsheet.ValueRange{Values: [][]any{r.Values()}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		delete(c.indexes, sheet)
		return "", fmt.Errorf("failed to update %s: %w", ref, err)
	}

	idx.rowCount = row
	idx.refs[r.TransactionID] = ref
	return ref, nil
}

// InvalidateCache forgets every sheet index.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes = make(map[string]*sheetIndex)
}

func (c *Client) indexLocked(ctx context.Context, sheet string) (*sheetIndex, error) {
	if idx, ok := c.indexes[sheet]; ok && c.now().Before(idx.expiresAt) {
		return idx, nil
	}

	rng := fmt.Sprintf("%s!A:H", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	idx := &sheetIndex{
		refs:      make(map[string]string, len(resp.Values)),
		rowCount:  len(resp.Values),
		expiresAt: c.now().Add(c.cacheValidDuration),
	}
	for i, row := range resp.Values {
		if len(row) <= idColumn {
			continue
		}
		if id := strings.TrimSpace(fmt.Sprint(row[idColumn])); id != "" {
			idx.refs[id] = rowRange(sheet, i+1)
		}
	}
	c.indexes[sheet] = idx
	return idx, nil
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:H%d", sheet, row, row)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
