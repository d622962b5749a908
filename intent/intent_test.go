package intent

import (
	"testing"

	"github.com/pithecene-io/intake/types"
)

func addrPtr(a types.FileAddress) *types.FileAddress { return &a }

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		event    *types.IntakeEvent
		wantSkip Skip
		wantRaw  string
	}{
		{
			name:     "nil event",
			event:    nil,
			wantSkip: SkipUnsupported,
		},
		{
			name: "view modern spreadsheet direct",
			event: &types.IntakeEvent{
				Action:    types.ActionView,
				MediaType: types.MediaTypeModernSpreadsheet,
				Data:      addrPtr(types.Direct("/data/incoming/report.xlsx")),
			},
			wantSkip: SkipNone,
			wantRaw:  "/data/incoming/report.xlsx",
		},
		{
			name: "view ignores payload items",
			event: &types.IntakeEvent{
				Action:    types.ActionView,
				MediaType: types.MediaTypeLegacySpreadsheet,
				Data:      addrPtr(types.Indirect("content://p/primary")),
				Items:     []types.FileAddress{types.Indirect("content://p/item")},
			},
			wantSkip: SkipNone,
			wantRaw:  "content://p/primary",
		},
		{
			name: "send takes first of several items",
			event: &types.IntakeEvent{
				Action:    types.ActionSend,
				MediaType: types.MediaTypeLegacySpreadsheet,
				Items: []types.FileAddress{
					types.Indirect("content://p/first"),
					types.Indirect("content://p/second"),
				},
				Stream: addrPtr(types.Indirect("content://p/stream")),
			},
			wantSkip: SkipNone,
			wantRaw:  "content://p/first",
		},
		{
			name: "send falls back to stream",
			event: &types.IntakeEvent{
				Action:    types.ActionSend,
				MediaType: types.MediaTypeModernSpreadsheet,
				Stream:    addrPtr(types.Indirect("content://p/stream")),
			},
			wantSkip: SkipNone,
			wantRaw:  "content://p/stream",
		},
		{
			name: "unsupported media type",
			event: &types.IntakeEvent{
				Action:    types.ActionView,
				MediaType: "application/pdf",
				Data:      addrPtr(types.Direct("/data/a.pdf")),
			},
			wantSkip: SkipUnsupported,
		},
		{
			name: "unsupported action",
			event: &types.IntakeEvent{
				Action:    "edit",
				MediaType: types.MediaTypeModernSpreadsheet,
				Data:      addrPtr(types.Direct("/data/a.xlsx")),
			},
			wantSkip: SkipUnsupported,
		},
		{
			name: "view without address",
			event: &types.IntakeEvent{
				Action:    types.ActionView,
				MediaType: types.MediaTypeModernSpreadsheet,
			},
			wantSkip: SkipNoAddress,
		},
		{
			name: "send without items or stream",
			event: &types.IntakeEvent{
				Action:    types.ActionSend,
				MediaType: types.MediaTypeModernSpreadsheet,
			},
			wantSkip: SkipNoAddress,
		},
		{
			name: "send with empty raw address",
			event: &types.IntakeEvent{
				Action:    types.ActionSend,
				MediaType: types.MediaTypeModernSpreadsheet,
				Items:     []types.FileAddress{{Scheme: types.SchemeIndirect}},
			},
			wantSkip: SkipNoAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.event)
			if got.Skip != tt.wantSkip {
				t.Fatalf("Skip = %v, want %v", got.Skip, tt.wantSkip)
			}
			if tt.wantSkip != SkipNone {
				if got.Applicable() {
					t.Error("expected not applicable")
				}
				if len(got.Addresses) != 0 {
					t.Errorf("expected no addresses, got %v", got.Addresses)
				}
				return
			}
			if !got.Applicable() {
				t.Fatal("expected applicable")
			}
			if len(got.Addresses) != 1 {
				t.Fatalf("expected exactly 1 address, got %d", len(got.Addresses))
			}
			if got.Addresses[0].Raw != tt.wantRaw {
				t.Errorf("address = %q, want %q", got.Addresses[0].Raw, tt.wantRaw)
			}
		})
	}
}

func TestSkip_String(t *testing.T) {
	tests := []struct {
		skip Skip
		want string
	}{
		{SkipNone, "none"},
		{SkipUnsupported, "unsupported_event"},
		{SkipNoAddress, "address_missing"},
		{Skip(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.skip.String(); got != tt.want {
			t.Errorf("Skip(%d).String() = %q, want %q", tt.skip, got, tt.want)
		}
	}
}
