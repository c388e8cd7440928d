package candlestore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// On-disk layout (little-endian, columnar so a min/max timestamp read
// touches only a handful of bytes instead of parsing every row):
//
//	magic      [4]byte  "CDL1"
//	rowCount   uint64
//	timestamps [rowCount]int64    -- offset headerSize
//	opens      [rowCount]float64  -- offset headerSize + 8*rowCount
//	highs      [rowCount]float64
//	lows       [rowCount]float64
//	closes     [rowCount]float64
//	volumes    [rowCount]float64
const (
	magic      = "CDL1"
	headerSize = int64(len(magic)) + 8 // magic + rowCount
)

// writeFile atomically (re)writes the candle file for candles, which MUST
// already be sorted ascending by timestamp and deduplicated. The write goes
// to a sibling temp file and is renamed into place; on any error the temp
// file is removed so a crash never leaves a partially-written target.
func writeFile(path string, candles []Candle) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("candlestore: mkdir: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d.%s", path, os.Getpid(), uuid.NewString())
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("candlestore: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(f)
	if werr := writeColumns(w, candles); werr != nil {
		f.Close()
		return fmt.Errorf("candlestore: write columns: %w", werr)
	}
	if werr := w.Flush(); werr != nil {
		f.Close()
		return fmt.Errorf("candlestore: flush: %w", werr)
	}
	if werr := f.Sync(); werr != nil {
		f.Close()
		return fmt.Errorf("candlestore: fsync: %w", werr)
	}
	if werr := f.Close(); werr != nil {
		return fmt.Errorf("candlestore: close temp file: %w", werr)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("candlestore: rename into place: %w", err)
	}
	return nil
}

func writeColumns(w io.Writer, candles []Candle) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(candles))); err != nil {
		return err
	}
	for _, c := range candles {
		if err := binary.Write(w, binary.LittleEndian, c.TimestampMS); err != nil {
			return err
		}
	}
	for _, field := range []func(Candle) float64{
		func(c Candle) float64 { return c.Open },
		func(c Candle) float64 { return c.High },
		func(c Candle) float64 { return c.Low },
		func(c Candle) float64 { return c.Close },
		func(c Candle) float64 { return c.Volume },
	} {
		for _, c := range candles {
			if err := binary.Write(w, binary.LittleEndian, field(c)); err != nil {
				return err
			}
		}
	}
	return nil
}

// readFile reads the entire candle file. A short, truncated, or
// magic-mismatched file is reported as ErrDataCorrupt.
func readFile(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrDataCorrupt, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	hdr := make([]byte, len(magic))
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrDataCorrupt, err)
	}
	if string(hdr) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrDataCorrupt)
	}

	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: missing row count: %v", ErrDataCorrupt, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: zero rows", ErrDataCorrupt)
	}

	candles := make([]Candle, count)
	for i := range candles {
		if err := binary.Read(r, binary.LittleEndian, &candles[i].TimestampMS); err != nil {
			return nil, fmt.Errorf("%w: truncated timestamp column: %v", ErrDataCorrupt, err)
		}
	}
	for _, col := range []func(*Candle) *float64{
		func(c *Candle) *float64 { return &c.Open },
		func(c *Candle) *float64 { return &c.High },
		func(c *Candle) *float64 { return &c.Low },
		func(c *Candle) *float64 { return &c.Close },
		func(c *Candle) *float64 { return &c.Volume },
	} {
		for i := range candles {
			if err := binary.Read(r, binary.LittleEndian, col(&candles[i])); err != nil {
				return nil, fmt.Errorf("%w: truncated value column: %v", ErrDataCorrupt, err)
			}
		}
	}

	return candles, nil
}

// readTimestampRange reads only the row count plus the first and last
// timestamp values, without parsing OHLCV columns, per the "read its
// min/max timestamps cheaply" requirement.
func readTimestampRange(path string) (minTS, maxTS int64, exists bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("%w: %v", ErrDataCorrupt, err)
	}
	defer f.Close()

	hdr := make([]byte, len(magic))
	if _, err := io.ReadFull(f, hdr); err != nil {
		return 0, 0, false, fmt.Errorf("%w: short header: %v", ErrDataCorrupt, err)
	}
	if string(hdr) != magic {
		return 0, 0, false, fmt.Errorf("%w: bad magic", ErrDataCorrupt)
	}

	var count uint64
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return 0, 0, false, fmt.Errorf("%w: missing row count: %v", ErrDataCorrupt, err)
	}
	if count == 0 {
		return 0, 0, false, fmt.Errorf("%w: zero rows", ErrDataCorrupt)
	}

	var first int64
	if err := binary.Read(f, binary.LittleEndian, &first); err != nil {
		return 0, 0, false, fmt.Errorf("%w: missing first timestamp: %v", ErrDataCorrupt, err)
	}

	if count > 1 {
		lastOffset := headerSize + int64(count-1)*8
		if _, err := f.Seek(lastOffset, io.SeekStart); err != nil {
			return 0, 0, false, fmt.Errorf("%w: seek to last timestamp: %v", ErrDataCorrupt, err)
		}
		var last int64
		if err := binary.Read(f, binary.LittleEndian, &last); err != nil {
			return 0, 0, false, fmt.Errorf("%w: truncated last timestamp: %v", ErrDataCorrupt, err)
		}
		return first, last, true, nil
	}

	return first, first, true, nil
}
