package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itplaylab/eventgate/queue"
)

func TestSheetsReadiness(t *testing.T) {
	var cases = []struct {
		name string
		cfg  SheetsConfig
		ok   bool
	}{
		{"nothing configured", SheetsConfig{}, false},
		{"sheet without credentials", SheetsConfig{SheetID: "s"}, false},
		{"credentials without sheet", SheetsConfig{CredentialsJSON: "{}"}, false},
		{"raw credentials", SheetsConfig{SheetID: "s", CredentialsJSON: "{}"}, true},
		{"base64 credentials", SheetsConfig{SheetID: "s", CredentialsB64: "e30="}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var reason, ok = NewSheets(tc.cfg).Ready()
			require.Equal(t, tc.ok, ok)
			if !ok {
				require.Equal(t, "missing_SHEET_ID_or_GOOGLE_SERVICE_ACCOUNT_JSON", reason)
			}
		})
	}
}

func TestSheetsRejectsBadBase64Key(t *testing.T) {
	var s = NewSheets(SheetsConfig{SheetID: "s", CredentialsB64: "!!not-base64!!"})
	var err = s.AppendBatch(context.Background(), []queue.Item{{ID: "A"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "decoding service account key")
}
