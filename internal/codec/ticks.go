package codec

import (
	"fmt"

	"tradedb/internal/model"
	"tradedb/internal/xerrors"
)

// tickHeaderLen is the fixed two-register prefix, same layout convention as
// the candle unit (spec §4.2).
const tickHeaderLen = 2

// tickSampleSize is 3 fields per tick: bid delta, ask delta, time delta.
func tickSampleSize(w1, w2 widthCode) int {
	return 2*bytesFor(w1) + bytesFor(w2)
}

// EncodeTicks packs an hour of ticks into the width-coded blob described in
// spec §4.2. Unlike candles, a ticks unit has no sentinel/absence concept —
// it is a dense array sized by len(ticks); hourStartMs is the externally
// supplied hour boundary the first tick's time delta is measured against
// (qdb-compact-ticks-dataset.hpp write_sequence: base_time comes from the
// caller, not from ticks[0].TMs).
func EncodeTicks(ticks []model.Tick, priceDigits int, hourStartMs uint64) ([]byte, error) {
	if priceDigits < 0 || priceDigits > 15 {
		return nil, fmt.Errorf("codec: EncodeTicks: digits out of range [0,15]")
	}
	priceFactor := pow10(priceDigits)
	regA := byte(priceDigits & 0x0F)

	if len(ticks) == 0 {
		buf := make([]byte, tickHeaderLen+4+1+1)
		buf[0] = regA
		buf[1] = 0
		putUint32(buf, tickHeaderLen, 0)
		return buf, nil
	}

	basePrice := quantize(ticks[0].Bid, priceFactor)
	baseTimeMs := hourStartMs

	var maxDiffPrice, maxDiffTime uint64
	lastBid := basePrice
	lastTimeMs := baseTimeMs
	for _, t := range ticks {
		qb := quantize(t.Bid, priceFactor)
		qa := quantize(t.Ask, priceFactor)
		dt := int64(t.TMs) - int64(lastTimeMs)

		for _, d := range []int64{qb - lastBid, qa - lastBid} {
			if m := absMagnitude(d); m > maxDiffPrice {
				maxDiffPrice = m
			}
		}
		if m := absMagnitude(dt); m > maxDiffTime {
			maxDiffTime = m
		}
		lastBid = qb
		lastTimeMs = t.TMs
	}

	w0 := unsignedCode(uint64(basePrice))
	w1 := signedCode(maxDiffPrice)
	w2 := signedCode(maxDiffTime)
	regB := w0 | (w1 << 2) | (w2 << 6)

	sampleSize := tickSampleSize(w1, w2)
	total := tickHeaderLen + bytesFor(w0) + 4 + len(ticks)*sampleSize
	buf := make([]byte, total)
	buf[0] = regA
	buf[1] = regB

	off := tickHeaderLen
	off = putUnsigned(buf, off, w0, uint64(basePrice))
	putUint32(buf, off, uint32(len(ticks)))
	off += 4

	lastBid = basePrice
	lastTimeMs = baseTimeMs
	for i, t := range ticks {
		qb := quantize(t.Bid, priceFactor)
		qa := quantize(t.Ask, priceFactor)
		dt := int64(t.TMs) - int64(lastTimeMs)

		sOff := off + i*sampleSize
		sOff = putSigned(buf, sOff, w1, qb-lastBid)
		sOff = putSigned(buf, sOff, w1, qa-lastBid)
		putSigned(buf, sOff, w2, dt)

		lastBid = qb
		lastTimeMs = t.TMs
	}

	return buf, nil
}

// DecodeTicks restores an hour of ticks from a blob produced by EncodeTicks.
// hourStartMs must be the same boundary value supplied at encode time.
func DecodeTicks(blob []byte, hourStartMs uint64) ([]model.Tick, int, error) {
	if len(blob) < tickHeaderLen+4 {
		return nil, 0, fmt.Errorf("codec: DecodeTicks: %w: blob too short (%d bytes)", xerrors.ErrCorrupt, len(blob))
	}
	regA := blob[0]
	regB := blob[1]
	priceDigits := int(regA & 0x0F)
	w0 := regB & 0x03
	w1 := (regB >> 2) & 0x03
	w2 := (regB >> 6) & 0x03

	priceFactor := pow10(priceDigits)

	off := tickHeaderLen
	if off+bytesFor(w0)+4 > len(blob) {
		return nil, 0, fmt.Errorf("codec: DecodeTicks: %w: header truncated", xerrors.ErrCorrupt)
	}
	basePriceU, off2 := getUnsigned(blob, off, w0)
	count := getUint32(blob, off2)
	off = off2 + 4

	if count == 0 {
		return nil, priceDigits, nil
	}

	sampleSize := tickSampleSize(w1, w2)
	expected := off + int(count)*sampleSize
	if len(blob) != expected {
		return nil, 0, fmt.Errorf("codec: DecodeTicks: %w: expected %d bytes, got %d", xerrors.ErrCorrupt, expected, len(blob))
	}

	ticks := make([]model.Tick, count)
	lastBid := int64(basePriceU)
	lastTimeMs := int64(hourStartMs)

	for i := 0; i < int(count); i++ {
		sOff := off + i*sampleSize
		db, p1 := getSigned(blob, sOff, w1)
		da, p2 := getSigned(blob, p1, w1)
		dt, _ := getSigned(blob, p2, w2)

		qb := lastBid + db
		qa := lastBid + da
		tMs := lastTimeMs + dt

		ticks[i] = model.Tick{
			Bid: float64(qb) / priceFactor,
			Ask: float64(qa) / priceFactor,
			TMs: uint64(tMs),
		}
		lastBid = qb
		lastTimeMs = tMs
	}

	return ticks, priceDigits, nil
}

func putUint32(buf []byte, off int, v uint32) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}

func getUint32(buf []byte, off int) uint32 {
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
}
