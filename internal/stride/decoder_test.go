package stride

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"
)

// msg builds a 9-byte channel message on channel 0.
func msg(payload ...byte) []byte {
	raw := make([]byte, FrameSize)
	copy(raw[payloadOffset:], payload)
	return raw
}

type recordingCallback struct {
	mu      sync.Mutex
	found   []Identity
	strides []uint8
	dists   []Optional[float64]
}

func (r *recordingCallback) DeviceFound(num uint16, tt uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.found = append(r.found, Identity{DeviceNumber: num, TransmissionType: tt})
}

func (r *recordingCallback) StrideData(steps uint8, distance Optional[float64]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strides = append(r.strides, steps)
	r.dists = append(r.dists, distance)
}

type fakeManager struct {
	params  []ChannelParams
	handler ChannelHandler
	err     error
	onOpen  func(h ChannelHandler)
}

func (m *fakeManager) OpenChannel(params ChannelParams, h ChannelHandler) error {
	m.params = append(m.params, params)
	if m.err != nil {
		return m.err
	}
	m.handler = h
	if m.onOpen != nil {
		m.onOpen(h)
	}
	return nil
}

func TestNewDecoderAllUnknown(t *testing.T) {
	d := NewDecoder(WildcardDeviceNumber, 0, nil)

	if d.Paired() {
		t.Error("new decoder should be unpaired")
	}
	if _, ok := d.DetectedDevice(); ok {
		t.Error("DetectedDevice() should be unknown")
	}
	if _, ok := d.StrideCount(); ok {
		t.Error("StrideCount() should be unknown")
	}
	if _, ok := d.Calories(); ok {
		t.Error("Calories() should be unknown")
	}
	if _, ok := d.HardwareRevision(); ok {
		t.Error("HardwareRevision() should be unknown")
	}
	if _, ok := d.ManufacturerID(); ok {
		t.Error("ManufacturerID() should be unknown")
	}
	if _, ok := d.ModelNumber(); ok {
		t.Error("ModelNumber() should be unknown")
	}
	if _, ok := d.SoftwareRevision(); ok {
		t.Error("SoftwareRevision() should be unknown")
	}
	if _, ok := d.SerialNumber(); ok {
		t.Error("SerialNumber() should be unknown")
	}
	if d.Snapshot() != (Snapshot{}) {
		t.Errorf("Snapshot() = %+v, want zero", d.Snapshot())
	}
}

func TestStartOpensChannel(t *testing.T) {
	d := NewDecoder(12345, 5, nil)
	mgr := &fakeManager{}

	if err := d.Start(mgr); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(mgr.params) != 1 {
		t.Fatalf("OpenChannel called %d times, want 1", len(mgr.params))
	}

	want := ChannelParams{
		Frequency:        0x39,
		Period:           8134,
		DeviceType:       0x7c,
		TransmissionType: 5,
		DeviceNumber:     12345,
		SearchTimeout:    30 * time.Second,
	}
	if mgr.params[0] != want {
		t.Errorf("params = %+v, want %+v", mgr.params[0], want)
	}
	if mgr.handler != d {
		t.Error("decoder should register itself as the channel handler")
	}

	if err := d.Start(mgr); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestStartErrors(t *testing.T) {
	d := NewDecoder(0, 0, nil)
	if err := d.Start(nil); !errors.Is(err, ErrNoChannelManager) {
		t.Errorf("Start(nil) error = %v, want ErrNoChannelManager", err)
	}

	boom := errors.New("no radio")
	failing := &fakeManager{err: boom}
	if err := d.Start(failing); !errors.Is(err, boom) {
		t.Errorf("Start() error = %v, want wrapped %v", err, boom)
	}

	// A failed open can be retried.
	if err := d.Start(&fakeManager{}); err != nil {
		t.Errorf("Start() after failure error = %v", err)
	}
}

func TestStartWithSynchronousDeviceFound(t *testing.T) {
	cb := &recordingCallback{}
	d := NewDecoder(0, 0, cb)
	mgr := &fakeManager{onOpen: func(h ChannelHandler) {
		h.DeviceFound(777, 1)
		h.OnMessage(msg(PageStrideData, 0, 0, 0, 0, 0, 3, 0))
	}}

	done := make(chan error, 1)
	go func() { done <- d.Start(mgr) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() deadlocked when the manager delivered events synchronously")
	}

	if id, ok := d.DetectedDevice(); !ok || id.DeviceNumber != 777 {
		t.Errorf("DetectedDevice() = (%v, %v), want 777/1", id, ok)
	}
	if n, ok := d.StrideCount(); !ok || n != 3 {
		t.Errorf("StrideCount() = (%d, %v), want (3, true)", n, ok)
	}
}

func TestDeviceFoundOnlyOnce(t *testing.T) {
	cb := &recordingCallback{}
	d := NewDecoder(0, 0, cb)

	d.DeviceFound(100, 1)
	d.DeviceFound(200, 2)

	id, ok := d.DetectedDevice()
	if !ok {
		t.Fatal("DetectedDevice() should be known after DeviceFound")
	}
	if id != (Identity{DeviceNumber: 100, TransmissionType: 1}) {
		t.Errorf("DetectedDevice() = %v, want 100/1", id)
	}
	if !d.Paired() {
		t.Error("Paired() should be true")
	}
	if len(cb.found) != 1 {
		t.Errorf("DeviceFound forwarded %d times, want 1", len(cb.found))
	}
}

func TestOnMessageIgnoresWrongLength(t *testing.T) {
	d := NewDecoder(0, 0, nil)
	d.OnMessage(msg(PageManufacturerInfo, 0xff, 0xff, 1, 2, 3, 4, 5))
	d.OnMessage(msg(PageStrideData, 0, 0, 0, 0, 0, 9, 0))
	before := d.Snapshot()

	rng := rand.New(rand.NewSource(1))
	for n := 0; n <= 32; n++ {
		if n == FrameSize {
			continue
		}
		raw := make([]byte, n)
		rng.Read(raw)
		if n > 1 {
			raw[1] = PageStrideData
		}
		d.OnMessage(raw)
		if got := d.Snapshot(); got != before {
			t.Fatalf("length %d changed state: %+v -> %+v", n, before, got)
		}
	}
}

func TestStrideCountEveryValue(t *testing.T) {
	for n := 0; n <= 255; n++ {
		d := NewDecoder(0, 0, nil)
		d.OnMessage(msg(PageStrideData, 0, 0, 0, 0, 0, byte(n), 0))

		got, ok := d.StrideCount()
		if !ok || got != uint8(n) {
			t.Fatalf("StrideCount() = (%d, %v), want (%d, true)", got, ok, n)
		}

		s := d.Snapshot().State
		s.StrideCount = Optional[uint8]{}
		if s != (State{}) {
			t.Fatalf("page 0x01 touched other fields: %+v", s)
		}
	}
}

func TestCaloriesPage(t *testing.T) {
	d := NewDecoder(0, 0, nil)
	d.OnMessage(msg(PageCalories, 0, 0, 0, 0, 0, 150, 0))

	if got, ok := d.Calories(); !ok || got != 150 {
		t.Errorf("Calories() = (%d, %v), want (150, true)", got, ok)
	}
	if _, ok := d.StrideCount(); ok {
		t.Error("calories page should not set stride count")
	}
}

func TestManufacturerInfoPage(t *testing.T) {
	tests := []struct {
		name      string
		hr        byte
		lsbM      byte
		msbM      byte
		lsbD      byte
		msbD      byte
		wantMfr   uint16
		wantModel uint16
	}{
		{"garmin pod", 3, 0x01, 0x00, 0x0f, 0x00, 1, 15},
		{"high bytes", 0xff, 0xff, 0xff, 0xff, 0xff, 0xffff, 0xffff},
		{"mixed", 7, 0x34, 0x12, 0x78, 0x56, 0x1234, 0x5678},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(0, 0, nil)
			d.OnMessage(msg(PageManufacturerInfo, 0xff, 0xff, tt.hr, tt.lsbM, tt.msbM, tt.lsbD, tt.msbD))

			if got, ok := d.HardwareRevision(); !ok || got != tt.hr {
				t.Errorf("HardwareRevision() = (%d, %v), want (%d, true)", got, ok, tt.hr)
			}
			if got, ok := d.ManufacturerID(); !ok || got != tt.wantMfr {
				t.Errorf("ManufacturerID() = (%d, %v), want %d", got, ok, tt.wantMfr)
			}
			if got, ok := d.ModelNumber(); !ok || got != tt.wantModel {
				t.Errorf("ModelNumber() = (%d, %v), want %d", got, ok, tt.wantModel)
			}
		})
	}
}

func TestProductInfoPage(t *testing.T) {
	tests := []struct {
		name   string
		sr     byte
		serial uint32
	}{
		{"zero serial", 1, 0},
		{"typical", 12, 0x00bc614e},
		{"max", 0xff, 0xffffffff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(0, 0, nil)
			d.OnMessage(msg(PageProductInfo, 0xff, 0xff, tt.sr,
				byte(tt.serial>>24), byte(tt.serial>>16), byte(tt.serial>>8), byte(tt.serial)))

			if got, ok := d.SoftwareRevision(); !ok || got != tt.sr {
				t.Errorf("SoftwareRevision() = (%d, %v), want (%d, true)", got, ok, tt.sr)
			}
			if got, ok := d.SerialNumber(); !ok || got != tt.serial {
				t.Errorf("SerialNumber() = (%d, %v), want (%d, true)", got, ok, tt.serial)
			}
		})
	}
}

func TestReplayIsIdempotent(t *testing.T) {
	cb := &recordingCallback{}
	d := NewDecoder(0, 0, cb)
	frame := msg(PageStrideData, 0, 0, 0, 0, 0, 5, 0)

	d.OnMessage(frame)
	d.OnMessage(frame)

	if got, _ := d.StrideCount(); got != 5 {
		t.Errorf("StrideCount() = %d after replay, want 5", got)
	}
	if len(cb.strides) != 1 {
		t.Errorf("StrideData fired %d times for a repeated frame, want 1", len(cb.strides))
	}
}

func TestStrideDataCallback(t *testing.T) {
	cb := &recordingCallback{}
	d := NewDecoder(0, 0, cb)

	for _, n := range []byte{0, 0, 1, 2, 2, 255, 0} {
		d.OnMessage(msg(PageStrideData, 0, 0, 0, 0, 0, n, 0))
	}
	d.OnMessage(msg(PageCalories, 0, 0, 0, 0, 0, 10, 0))

	want := []uint8{0, 1, 2, 255, 0}
	if len(cb.strides) != len(want) {
		t.Fatalf("StrideData calls = %v, want %v", cb.strides, want)
	}
	for i := range want {
		if cb.strides[i] != want[i] {
			t.Errorf("StrideData[%d] = %d, want %d", i, cb.strides[i], want[i])
		}
		if cb.dists[i].Known() {
			t.Errorf("StrideData[%d] distance = %v, want unknown", i, cb.dists[i])
		}
	}
}

func TestCallbackMayReenterDecoder(t *testing.T) {
	var d *Decoder
	var seen uint8
	d = NewDecoder(0, 0, CallbackFuncs{
		OnStrideData: func(steps uint8, _ Optional[float64]) {
			seen, _ = d.StrideCount()
		},
		OnDeviceFound: func(uint16, uint8) {
			_ = d.Snapshot()
		},
	})

	done := make(chan struct{})
	go func() {
		d.DeviceFound(1, 1)
		d.OnMessage(msg(PageStrideData, 0, 0, 0, 0, 0, 11, 0))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback re-entering the decoder deadlocked")
	}
	if seen != 11 {
		t.Errorf("callback observed %d, want 11", seen)
	}
}

func TestPanickingCallbackLeavesStateConsistent(t *testing.T) {
	d := NewDecoder(0, 0, CallbackFuncs{
		OnStrideData: func(uint8, Optional[float64]) { panic("application bug") },
	})

	func() {
		defer func() {
			if recover() == nil {
				t.Error("callback panic should propagate to the caller")
			}
		}()
		d.OnMessage(msg(PageStrideData, 0, 0, 0, 0, 0, 4, 0))
	}()

	// The lock must have been released and the update committed.
	if got, ok := d.StrideCount(); !ok || got != 4 {
		t.Errorf("StrideCount() = (%d, %v), want (4, true)", got, ok)
	}
}

func TestUnknownPagesIgnored(t *testing.T) {
	handled := map[byte]bool{
		PageStrideData: true, PageTemplate: true, PageCalories: true,
		PageDistanceSinceReset: true, PageCapabilities: true,
		PageManufacturerInfo: true, PageProductInfo: true,
	}

	d := NewDecoder(0, 0, nil)
	d.OnMessage(msg(PageProductInfo, 0xff, 0xff, 1, 0, 0, 0, 1))
	before := d.Snapshot()

	for p := 0; p <= 0xff; p++ {
		if handled[byte(p)] {
			continue
		}
		d.OnMessage(msg(byte(p), 1, 2, 3, 4, 5, 6, 7))
	}
	// Reserved pages are recognised but decode nothing either.
	d.OnMessage(msg(PageTemplate, 1, 2, 3, 4, 5, 6, 7))
	d.OnMessage(msg(PageDistanceSinceReset, 1, 2, 3, 4, 5, 6, 7))
	d.OnMessage(msg(PageCapabilities, 1, 2, 3, 4, 5, 6, 7))

	if got := d.Snapshot(); got != before {
		t.Errorf("unknown pages changed state: %+v -> %+v", before, got)
	}
}

func TestFieldsNeverRevert(t *testing.T) {
	d := NewDecoder(0, 0, nil)
	d.OnMessage(msg(PageManufacturerInfo, 0xff, 0xff, 2, 1, 0, 5, 0))
	d.OnMessage(msg(PageStrideData, 0, 0, 0, 0, 0, 1, 0))
	d.OnMessage(msg(PageProductInfo, 0xff, 0xff, 3, 0, 0, 0, 9))

	if _, ok := d.ManufacturerID(); !ok {
		t.Error("ManufacturerID() reverted to unknown")
	}
	if _, ok := d.HardwareRevision(); !ok {
		t.Error("HardwareRevision() reverted to unknown")
	}
}

func TestConcurrentReadsNeverTorn(t *testing.T) {
	d := NewDecoder(0, 0, nil)
	frameA := msg(PageManufacturerInfo, 0xff, 0xff, 1, 0x11, 0x11, 0x11, 0x11)
	frameB := msg(PageManufacturerInfo, 0xff, 0xff, 2, 0x22, 0x22, 0x22, 0x22)

	var writer, readers sync.WaitGroup
	stop := make(chan struct{})

	writer.Add(1)
	go func() {
		defer writer.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				d.OnMessage(frameA)
			} else {
				d.OnMessage(frameB)
			}
		}
	}()

	errs := make(chan string, 4)
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 5000; i++ {
				s := d.Snapshot().State
				mfr, ok1 := s.ManufacturerID.Get()
				model, ok2 := s.ModelNumber.Get()
				hw, ok3 := s.HardwareRevision.Get()
				if ok1 != ok2 || ok2 != ok3 {
					errs <- "fields from one page became known separately"
					return
				}
				if !ok1 {
					continue
				}
				if mfr != model || (mfr == 0x1111) != (hw == 1) {
					errs <- "torn manufacturer info snapshot"
					return
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	writer.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
}

func TestRandomFramesNeverPanic(t *testing.T) {
	d := NewDecoder(0, 0, &recordingCallback{})
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 20000; i++ {
		raw := make([]byte, rng.Intn(16))
		rng.Read(raw)
		d.OnMessage(raw)
	}
}

func FuzzOnMessage(f *testing.F) {
	f.Add(msg(PageStrideData, 0, 0, 0, 0, 0, 1, 0))
	f.Add(msg(PageManufacturerInfo, 0xff, 0xff, 1, 2, 3, 4, 5))
	f.Add([]byte{0x00})
	f.Fuzz(func(t *testing.T, raw []byte) {
		d := NewDecoder(0, 0, nil)
		d.OnMessage(raw)
		if len(raw) != FrameSize && d.Snapshot() != (Snapshot{}) {
			t.Errorf("frame of %d bytes changed state", len(raw))
		}
	})
}
