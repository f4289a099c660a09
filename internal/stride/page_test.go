package stride

import (
	"errors"
	"testing"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		wantErr bool
	}{
		{name: "empty", raw: nil, wantErr: true},
		{name: "payload without channel", raw: make([]byte, 8), wantErr: true},
		{name: "channel message", raw: make([]byte, 9), wantErr: false},
		{name: "extended message", raw: make([]byte, 14), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrFrameLength) {
				t.Errorf("ParseFrame() error = %v, want ErrFrameLength", err)
			}
		})
	}
}

func TestFrameBytesRoundTrip(t *testing.T) {
	raw := []byte{0x02, 0x50, 0xff, 0xff, 0x03, 0x0f, 0x00, 0x34, 0x12}
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if f.Channel != 0x02 {
		t.Errorf("Channel = %d, want 2", f.Channel)
	}
	if f.PageNumber() != PageManufacturerInfo {
		t.Errorf("PageNumber() = 0x%02x, want 0x50", f.PageNumber())
	}
	if got := f.Bytes(); string(got) != string(raw) {
		t.Errorf("Bytes() = % x, want % x", got, raw)
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name    string
		payload [PayloadSize]byte
		verify  func(t *testing.T, p Page)
	}{
		{
			name:    "stride data",
			payload: [8]byte{0x01, 0, 0, 0, 0, 0, 42, 0},
			verify: func(t *testing.T, p Page) {
				sd, ok := p.(*StrideDataPage)
				if !ok {
					t.Fatalf("page type = %T, want *StrideDataPage", p)
				}
				if sd.StrideCount != 42 {
					t.Errorf("StrideCount = %d, want 42", sd.StrideCount)
				}
			},
		},
		{
			name:    "calories",
			payload: [8]byte{0x03, 0, 0, 0, 0, 0, 200, 0},
			verify: func(t *testing.T, p Page) {
				c, ok := p.(*CaloriesPage)
				if !ok {
					t.Fatalf("page type = %T, want *CaloriesPage", p)
				}
				if c.Calories != 200 {
					t.Errorf("Calories = %d, want 200", c.Calories)
				}
			},
		},
		{
			name:    "manufacturer info",
			payload: [8]byte{0x50, 0xff, 0xff, 0x07, 0x01, 0x02, 0x03, 0x04},
			verify: func(t *testing.T, p Page) {
				m, ok := p.(*ManufacturerInfoPage)
				if !ok {
					t.Fatalf("page type = %T, want *ManufacturerInfoPage", p)
				}
				if m.HardwareRevision != 7 {
					t.Errorf("HardwareRevision = %d, want 7", m.HardwareRevision)
				}
				if m.ManufacturerID != 0x0201 {
					t.Errorf("ManufacturerID = 0x%04x, want 0x0201", m.ManufacturerID)
				}
				if m.ModelNumber != 0x0403 {
					t.Errorf("ModelNumber = 0x%04x, want 0x0403", m.ModelNumber)
				}
			},
		},
		{
			name:    "product info",
			payload: [8]byte{0x51, 0xff, 0xff, 0x09, 0x12, 0x34, 0x56, 0x78},
			verify: func(t *testing.T, p Page) {
				pi, ok := p.(*ProductInfoPage)
				if !ok {
					t.Fatalf("page type = %T, want *ProductInfoPage", p)
				}
				if pi.SoftwareRevision != 9 {
					t.Errorf("SoftwareRevision = %d, want 9", pi.SoftwareRevision)
				}
				if pi.SerialNumber != 0x12345678 {
					t.Errorf("SerialNumber = 0x%08x, want 0x12345678", pi.SerialNumber)
				}
			},
		},
		{
			name:    "capabilities is reserved",
			payload: [8]byte{0x16, 1, 2, 3, 4, 5, 6, 7},
			verify: func(t *testing.T, p Page) {
				r, ok := p.(*ReservedPage)
				if !ok {
					t.Fatalf("page type = %T, want *ReservedPage", p)
				}
				if r.Number() != PageCapabilities {
					t.Errorf("Number() = 0x%02x, want 0x16", r.Number())
				}
				if r.Data[0] != 1 || r.Data[6] != 7 {
					t.Errorf("Data = % x, want 01..07", r.Data[:])
				}
			},
		},
		{
			name:    "unknown page",
			payload: [8]byte{0xff},
			verify: func(t *testing.T, p Page) {
				if _, ok := p.(*UnknownPage); !ok {
					t.Fatalf("page type = %T, want *UnknownPage", p)
				}
				if p.Number() != 0xff {
					t.Errorf("Number() = 0x%02x, want 0xff", p.Number())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Frame{Payload: tt.payload}
			tt.verify(t, f.ParsePage())
		})
	}
}

func TestPageName(t *testing.T) {
	tests := []struct {
		page byte
		want string
	}{
		{PageStrideData, "StrideData"},
		{PageTemplate, "Template"},
		{PageCalories, "Calories"},
		{PageDistanceSinceReset, "DistanceSinceReset"},
		{PageCapabilities, "Capabilities"},
		{PageManufacturerInfo, "ManufacturerInfo"},
		{PageProductInfo, "ProductInfo"},
		{0x42, "Unknown(0x42)"},
	}

	for _, tt := range tests {
		if got := PageName(tt.page); got != tt.want {
			t.Errorf("PageName(0x%02x) = %q, want %q", tt.page, got, tt.want)
		}
	}
}
