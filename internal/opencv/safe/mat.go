package safe

import (
	"fmt"
	"image"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Mat owns a gocv.Mat and guarantees it is closed exactly once.
type Mat struct {
	mat     gocv.Mat
	isValid int32
	mu      sync.RWMutex
	id      uint64
	tag     string
}

var nextMatID uint64

// NewMat allocates a zero-filled Mat.
func NewMat(rows, cols int, matType gocv.MatType) (*Mat, error) {
	return NewTaggedMat(rows, cols, matType, "")
}

func NewTaggedMat(rows, cols int, matType gocv.MatType, tag string) (*Mat, error) {
	if err := ValidateDimensions(cols, rows, "NewMat"); err != nil {
		return nil, err
	}

	mat := gocv.NewMatWithSize(rows, cols, matType)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to create Mat with size %dx%d", cols, rows)
	}
	mat.SetTo(gocv.NewScalar(0, 0, 0, 0))

	return track(mat, tag), nil
}

// NewMatFromMat clones src; the caller keeps ownership of src.
func NewMatFromMat(src gocv.Mat) (*Mat, error) {
	if src.Empty() {
		return nil, fmt.Errorf("source Mat is empty")
	}

	cloned := src.Clone()
	if cloned.Empty() {
		cloned.Close()
		return nil, fmt.Errorf("failed to clone Mat")
	}

	return track(cloned, ""), nil
}

func track(mat gocv.Mat, tag string) *Mat {
	sm := &Mat{
		mat:     mat,
		isValid: 1,
		id:      atomic.AddUint64(&nextMatID, 1),
		tag:     tag,
	}
	runtime.SetFinalizer(sm, (*Mat).finalize)
	return sm
}

func (sm *Mat) IsValid() bool {
	return atomic.LoadInt32(&sm.isValid) == 1
}

func (sm *Mat) Empty() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return true
	}
	return sm.mat.Empty()
}

func (sm *Mat) Rows() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Rows()
}

func (sm *Mat) Cols() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Cols()
}

func (sm *Mat) Channels() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Channels()
}

func (sm *Mat) Type() gocv.MatType {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return gocv.MatTypeCV8UC1
	}
	return sm.mat.Type()
}

func (sm *Mat) Tag() string {
	return sm.tag
}

func (sm *Mat) ID() uint64 {
	return sm.id
}

func (sm *Mat) Clone() (*Mat, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("cannot clone invalid Mat")
	}
	clone, err := NewMatFromMat(sm.mat)
	if err != nil {
		return nil, err
	}
	clone.tag = sm.tag + "_clone"
	return clone, nil
}

// Zero sets every element to 0.
func (sm *Mat) Zero() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.IsValid() {
		return fmt.Errorf("Mat is invalid")
	}
	sm.mat.SetTo(gocv.NewScalar(0, 0, 0, 0))
	return nil
}

func (sm *Mat) GetUCharAt(row, col int) (uint8, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0, fmt.Errorf("Mat is invalid")
	}
	if err := ValidateCoordinates(row, col, sm.mat.Rows(), sm.mat.Cols(), "GetUCharAt"); err != nil {
		return 0, err
	}
	return sm.mat.GetUCharAt(row, col), nil
}

func (sm *Mat) SetUCharAt(row, col int, value uint8) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.IsValid() {
		return fmt.Errorf("Mat is invalid")
	}
	if err := ValidateCoordinates(row, col, sm.mat.Rows(), sm.mat.Cols(), "SetUCharAt"); err != nil {
		return err
	}
	sm.mat.SetUCharAt(row, col, value)
	return nil
}

// Bytes returns a row-major copy of an 8-bit single-channel Mat.
func (sm *Mat) Bytes() ([]byte, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("Mat is invalid")
	}
	if sm.mat.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("Bytes requires CV_8UC1, got type %d", int(sm.mat.Type()))
	}

	data := sm.mat.ToBytes()
	if len(data) != sm.mat.Rows()*sm.mat.Cols() {
		return nil, fmt.Errorf("unexpected buffer size %d for %dx%d Mat", len(data), sm.mat.Cols(), sm.mat.Rows())
	}
	return data, nil
}

// Gray copies an 8-bit single-channel Mat into an image.Gray anchored at the origin.
func (sm *Mat) Gray() (*image.Gray, error) {
	data, err := sm.Bytes()
	if err != nil {
		return nil, err
	}
	return &image.Gray{
		Pix:    data,
		Stride: sm.Cols(),
		Rect:   image.Rect(0, 0, sm.Cols(), sm.Rows()),
	}, nil
}

// SetBytes overwrites an 8-bit single-channel Mat with row-major data.
func (sm *Mat) SetBytes(data []byte) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.IsValid() {
		return fmt.Errorf("Mat is invalid")
	}
	rows, cols := sm.mat.Rows(), sm.mat.Cols()
	if len(data) != rows*cols {
		return fmt.Errorf("buffer size %d does not match %dx%d Mat", len(data), cols, rows)
	}

	ptr, err := sm.mat.DataPtrUint8()
	if err == nil && len(ptr) == len(data) {
		copy(ptr, data)
		return nil
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sm.mat.SetUCharAt(r, c, data[r*cols+c])
		}
	}
	return nil
}

// GetMat exposes the underlying Mat; it stays owned by sm.
func (sm *Mat) GetMat() gocv.Mat {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.mat
}

func (sm *Mat) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if atomic.CompareAndSwapInt32(&sm.isValid, 1, 0) {
		sm.mat.Close()
		runtime.SetFinalizer(sm, nil)
	}
}

// finalize is the garbage collector's last resort when Close was skipped
func (sm *Mat) finalize() {
	if atomic.LoadInt32(&sm.isValid) == 1 {
		sm.Close()
	}
}
