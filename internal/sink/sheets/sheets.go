// Package sheets is the Activity Log Sink: an append-only spreadsheet in
// Google Sheets with one tab per activity kind.
//
// Every row is appended; nothing here ever rewrites a data row. The only
// in-place write is the header of an empty row 1, done by EnsureStructure.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Tab titles. Chat questions go to the spreadsheet's default first tab.
const (
	TabSignups = "Signups"
	TabLogins  = "Logins"
	TabChat    = "Sheet1"
)

// EmailColumn is the column holding the email on every tab.
const EmailColumn = "B"

// Layout describes one tab: its title and the header written to row 1.
type Layout struct {
	Title  string
	Header []string
}

// DefaultLayouts are the tabs the application writes to.
var DefaultLayouts = []Layout{
	{Title: TabSignups, Header: []string{"Name", "Email", "Username", "Organization", "Purpose", "Date", "Time"}},
	{Title: TabLogins, Header: []string{"Name", "Email", "IP Address", "Date", "Time"}},
	{Title: TabChat, Header: []string{"Timestamp", "Email", "Question"}},
}

// Report lists what EnsureStructure had to create. Both slices are empty when
// the spreadsheet was already in shape.
type Report struct {
	CreatedTabs    []string
	CreatedHeaders []string
}

// Changed reports whether anything was created.
func (r Report) Changed() bool {
	return len(r.CreatedTabs) > 0 || len(r.CreatedHeaders) > 0
}

// Config selects the spreadsheet and the service account credentials.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	// Endpoint overrides the API base URL. Used against fakes; when set
	// without credentials, requests are sent unauthenticated.
	Endpoint string
	// Timeout bounds every API call. Zero means calls are bounded only by
	// the caller's context.
	Timeout time.Duration
}

// Client appends activity rows to a spreadsheet.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	timeout       time.Duration
}

// ErrNotConfigured is returned by New when no spreadsheet ID is set.
var ErrNotConfigured = errors.New("sheets: spreadsheet id is not configured")

// New builds a Client. It makes no network calls.
func New(ctx context.Context, cfg Config, extra ...option.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, ErrNotConfigured
	}

	opts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: creating service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, timeout: cfg.Timeout}, nil
}

// bound derives the context for one API call.
func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Append adds one row after the last non-empty row of tab.
func (c *Client) Append(ctx context.Context, tab string, row []any) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	vr := &sheetsapi.ValueRange{Values: [][]interface{}{row}}
	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, a1(tab, "A1"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: appending to %s: %w", tab, err)
	}
	return nil
}

// ColumnContains reports whether any data cell of column in tab equals value,
// ignoring case and surrounding whitespace. Row 1 is the header and is never
// compared.
func (c *Client) ColumnContains(ctx context.Context, tab, column, value string) (bool, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	resp, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetID, a1(tab, column+"2:"+column)).
		Context(ctx).
		Do()
	if err != nil {
		return false, fmt.Errorf("sheets: reading %s!%s: %w", tab, column, err)
	}

	want := strings.TrimSpace(value)
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(fmt.Sprint(row[0])), want) {
			return true, nil
		}
	}
	return false, nil
}

// EnsureStructure makes sure every layout has a tab and a header row.
//
// Missing tabs are added. A header is written only when row 1 of the tab is
// completely empty, so existing headers and data rows are never overwritten.
// Running it against a spreadsheet that is already in shape makes only reads.
//
// Several instances may run it at once. The API rejects a whole batch when
// any tab in it already exists, so a rejected batch is followed by a fresh
// read: tabs another caller added count as done, and only tabs that are still
// missing are tried once more. CreatedTabs lists the tabs this call added.
func (c *Client) EnsureStructure(ctx context.Context, layouts []Layout) (Report, error) {
	var report Report

	existing, err := c.tabTitles(ctx)
	if err != nil {
		return report, err
	}

	missing := missingTabs(layouts, existing)
	if len(missing) > 0 {
		if err := c.addTabs(ctx, missing); err != nil {
			existing, rerr := c.tabTitles(ctx)
			if rerr != nil {
				return report, fmt.Errorf("sheets: adding tabs %v: %w", missing, err)
			}
			missing = missingTabs(layouts, existing)
			if len(missing) > 0 {
				if err := c.addTabs(ctx, missing); err != nil {
					return report, fmt.Errorf("sheets: adding tabs %v: %w", missing, err)
				}
			}
		}
		report.CreatedTabs = missing
	}

	// Tabs are independent, so their header rows are checked in parallel.
	written := make([]bool, len(layouts))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range layouts {
		g.Go(func() error {
			ok, err := c.ensureHeader(gctx, l)
			written[i] = ok
			return err
		})
	}
	err = g.Wait()

	for i, l := range layouts {
		if written[i] {
			report.CreatedHeaders = append(report.CreatedHeaders, l.Title)
		}
	}
	if err != nil {
		return report, err
	}

	return report, nil
}

// ensureHeader writes l.Header to row 1 when that row is empty and reports
// whether it did.
func (c *Client) ensureHeader(ctx context.Context, l Layout) (bool, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1(l.Title, "1:1")).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("sheets: reading header of %s: %w", l.Title, err)
	}
	if !rowEmpty(resp.Values) {
		return false, nil
	}

	header := make([]interface{}, len(l.Header))
	for i, h := range l.Header {
		header[i] = h
	}
	_, err = c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, a1(l.Title, "A1"), &sheetsapi.ValueRange{Values: [][]interface{}{header}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return false, fmt.Errorf("sheets: writing header of %s: %w", l.Title, err)
	}
	return true, nil
}

// addTabs adds titles in one batch. The API applies a batch atomically.
func (c *Client) addTabs(ctx context.Context, titles []string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	requests := make([]*sheetsapi.Request, 0, len(titles))
	for _, t := range titles {
		requests = append(requests, &sheetsapi.Request{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{Title: t},
			},
		})
	}
	_, err := c.svc.Spreadsheets.
		BatchUpdate(c.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{Requests: requests}).
		Context(ctx).
		Do()
	return err
}

func missingTabs(layouts []Layout, existing map[string]struct{}) []string {
	var missing []string
	for _, l := range layouts {
		if _, ok := existing[l.Title]; !ok {
			missing = append(missing, l.Title)
		}
	}
	return missing
}

func (c *Client) tabTitles(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: reading spreadsheet: %w", err)
	}

	titles := make(map[string]struct{}, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			titles[s.Properties.Title] = struct{}{}
		}
	}
	return titles, nil
}

// a1 builds a quoted A1 range, e.g. 'Logins'!A1.
func a1(tab, rng string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + rng
}

func rowEmpty(values [][]interface{}) bool {
	for _, row := range values {
		for _, cell := range row {
			if strings.TrimSpace(fmt.Sprint(cell)) != "" {
				return false
			}
		}
	}
	return true
}
