package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"roomsplit/internal/core"
	"roomsplit/internal/log"
	ports "roomsplit/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Exporter mirrors room ledgers into one spreadsheet, one tab per room.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ ports.LedgerExporter = (*Exporter)(nil)

// Credentials selects how the exporter authenticates. JSON wins over File;
// with neither set, application default credentials are used.
type Credentials struct {
	JSON string
	File string
}

// New creates an exporter for spreadsheetID. Extra options are appended
// after the credential options.
func New(ctx context.Context, spreadsheetID string, creds Credentials, extra ...goption.ClientOption) (*Exporter, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	opts, err := credentialOptions(ctx, creds)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func credentialOptions(ctx context.Context, creds Credentials) ([]goption.ClientOption, error) {
	scopes := goption.WithScopes(gsheet.SpreadsheetsScope)
	switch {
	case strings.TrimSpace(creds.JSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials", log.FieldComponent, log.ComponentSheets)
		return []goption.ClientOption{goption.WithCredentialsJSON([]byte(creds.JSON)), scopes}, nil
	case strings.TrimSpace(creds.File) != "":
		data, err := os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Using service account credentials file",
			log.FieldComponent, log.ComponentSheets, "path", creds.File)
		return []goption.ClientOption{goption.WithCredentialsJSON(data), scopes}, nil
	default:
		return []goption.ClientOption{scopes}, nil
	}
}

// ExportRoom replaces the room's tab with the current ledger, creating the
// tab on first export.
func (x *Exporter) ExportRoom(ctx context.Context, roomID string, expenses []core.Expense, roster []core.UserProfile) error {
	if x.svc == nil {
		return errors.New("sheets service not initialized")
	}
	title := ports.SheetTitle(roomID)

	exists, err := x.hasSheet(ctx, title)
	if err != nil {
		return err
	}
	if !exists {
		req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}}}
		if _, err := x.svc.Spreadsheets.BatchUpdate(x.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("add sheet %s: %w", title, err)
		}
		slog.InfoContext(ctx, "Created ledger sheet",
			log.FieldComponent, log.ComponentSheets, log.FieldRoomID, roomID, "sheet", title)
	}

	all := quote(title) + "!A:G"
	if _, err := x.svc.Spreadsheets.Values.Clear(x.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", all, err)
	}

	rows := ports.Rows(expenses, roster)
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = make([]any, len(r))
		for j, c := range r {
			values[i][j] = c
		}
	}
	start := quote(title) + "!A1"
	_, err = x.svc.Spreadsheets.Values.Update(x.spreadsheetID, start, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", start, err)
	}

	slog.InfoContext(ctx, "Exported room ledger",
		log.FieldComponent, log.ComponentSheets, log.FieldRoomID, roomID, "rows", len(expenses))
	return nil
}

func (x *Exporter) hasSheet(ctx context.Context, title string) (bool, error) {
	ss, err := x.svc.Spreadsheets.Get(x.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
