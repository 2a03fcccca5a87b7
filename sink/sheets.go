package sink

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/itplaylab/eventgate/queue"
)

// SheetsConfig configures the spreadsheet batch sink.
type SheetsConfig struct {
	// SheetID of the target spreadsheet.
	SheetID string
	// SheetName of the tab receiving appended rows.
	SheetName string
	// CredentialsB64 is the service-account key, base64-encoded.
	CredentialsB64 string
	// CredentialsJSON is the service-account key as raw JSON.
	// CredentialsB64 takes precedence when both are set.
	CredentialsJSON string
}

// Sheets appends queue items to a spreadsheet tab. The authenticated client
// is built on first use and cached, so a gateway running in ECHO or STORE
// mode never needs credential material.
type Sheets struct {
	cfg SheetsConfig

	mu  sync.Mutex
	svc *sheets.Service
}

// NewSheets returns a Sheets sink for |cfg|.
func NewSheets(cfg SheetsConfig) *Sheets {
	return &Sheets{cfg: cfg}
}

// Ready implements queue.Sink.
func (s *Sheets) Ready() (string, bool) {
	if s.cfg.SheetID == "" || (s.cfg.CredentialsB64 == "" && s.cfg.CredentialsJSON == "") {
		return "missing_SHEET_ID_or_GOOGLE_SERVICE_ACCOUNT_JSON", false
	}
	return "", true
}

// AppendBatch implements queue.Sink: one batch append of five-column rows
// [id, payload, received_at, "render", ""] in raw value mode.
func (s *Sheets) AppendBatch(ctx context.Context, items []queue.Item) error {
	var svc, err = s.service(ctx)
	if err != nil {
		return err
	}

	var values = make([][]interface{}, len(items))
	for i, it := range items {
		values[i] = []interface{}{it.ID, it.Payload, it.ReceivedAt, "render", ""}
	}

	_, err = svc.Spreadsheets.Values.
		Append(s.cfg.SheetID, s.cfg.SheetName+"!A:E", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("appending %d rows: %w", len(items), err)
	}
	return nil
}

func (s *Sheets) service(ctx context.Context) (*sheets.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.svc != nil {
		return s.svc, nil
	}

	var creds = []byte(s.cfg.CredentialsJSON)
	if s.cfg.CredentialsB64 != "" {
		var err error
		if creds, err = base64.StdEncoding.DecodeString(s.cfg.CredentialsB64); err != nil {
			return nil, fmt.Errorf("decoding service account key: %w", err)
		}
	}

	var svc, err = sheets.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("building sheets client: %w", err)
	}
	log.WithField("sheet", s.cfg.SheetID).Info("built sheets batch sink client")
	s.svc = svc
	return svc, nil
}
