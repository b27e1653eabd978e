package codec

import (
	"fmt"

	"tradedb/internal/model"
	"tradedb/internal/xerrors"
)

// candleHeaderLen is the fixed two-register prefix common to both layouts
// (spec §4.2 "Layout (common)").
const candleHeaderLen = 2

// EncodeCandles packs a day of candles (model.MinutesPerDay slots, indexed
// by minute-of-day; empty slots carry a zero-value model.Candle) into the
// width-coded blob described in spec §4.2.
//
// priceDigits/volumeDigits select the quantization scale (10^digits) and
// must each be in [0,15].
func EncodeCandles(day [model.MinutesPerDay]model.Candle, priceDigits, volumeDigits int) ([]byte, error) {
	if priceDigits < 0 || priceDigits > 15 || volumeDigits < 0 || volumeDigits > 15 {
		return nil, fmt.Errorf("codec: EncodeCandles: digits out of range [0,15]")
	}
	priceFactor := pow10(priceDigits)
	volumeFactor := pow10(volumeDigits)

	firstIdx := -1
	for i := range day {
		if !day[i].Empty() {
			firstIdx = i
			break
		}
	}

	regA := byte(priceDigits&0x0F) | byte((volumeDigits&0x0F)<<4)

	if firstIdx == -1 {
		// No samples at all: an all-sentinel day, minimal widths.
		buf := make([]byte, candleHeaderLen+1+1+model.MinutesPerDay*candleSampleSize(0, 0))
		buf[0] = regA
		buf[1] = 0 // w0=w1=w2=w3=0
		off := candleHeaderLen
		buf[off] = 0 // base_price
		off++
		buf[off] = 0 // base_volume
		off++
		fillSentinel(buf[off:], model.MinutesPerDay, 0, 0)
		return buf, nil
	}

	basePrice := quantize(day[firstIdx].Close, priceFactor)
	baseVolume := quantize(day[firstIdx].Volume, volumeFactor)

	// Pass 1: derive the minimal delta widths, folding in all four price
	// fields (not just high/low) so the chosen width always covers every
	// delta actually written — see DESIGN.md on the sentinel-safety
	// invariant spec §9 calls out as "a contract to re-prove".
	var maxDiffPrice, maxDiffVolume uint64
	lastClose := basePrice
	lastVolume := baseVolume
	for i := firstIdx; i < model.MinutesPerDay; i++ {
		c := day[i]
		if c.Empty() {
			continue
		}
		co := quantize(c.Open, priceFactor)
		ch := quantize(c.High, priceFactor)
		cl := quantize(c.Low, priceFactor)
		cc := quantize(c.Close, priceFactor)
		cv := quantize(c.Volume, volumeFactor)

		for _, d := range []int64{co - lastClose, ch - lastClose, cl - lastClose, cc - lastClose} {
			if m := absMagnitude(d); m > maxDiffPrice {
				maxDiffPrice = m
			}
		}
		if m := absMagnitude(cv - lastVolume); m > maxDiffVolume {
			maxDiffVolume = m
		}
		lastClose = cc
		lastVolume = cv
	}

	w0 := unsignedCode(uint64(basePrice))
	w1 := signedCode(maxDiffPrice)
	w2 := unsignedCode(uint64(baseVolume))
	w3 := signedCode(maxDiffVolume)
	regB := w0 | (w1 << 2) | (w2 << 4) | (w3 << 6)

	sampleSize := candleSampleSize(w1, w3)
	total := candleHeaderLen + bytesFor(w0) + bytesFor(w2) + model.MinutesPerDay*sampleSize
	buf := make([]byte, total)
	buf[0] = regA
	buf[1] = regB

	off := candleHeaderLen
	off = putUnsigned(buf, off, w0, uint64(basePrice))
	off = putUnsigned(buf, off, w2, uint64(baseVolume))

	fillSentinel(buf[off:], model.MinutesPerDay, w1, w3)

	lastClose = basePrice
	lastVolume = baseVolume
	for i := firstIdx; i < model.MinutesPerDay; i++ {
		c := day[i]
		if c.Empty() {
			continue
		}
		co := quantize(c.Open, priceFactor)
		ch := quantize(c.High, priceFactor)
		cl := quantize(c.Low, priceFactor)
		cc := quantize(c.Close, priceFactor)
		cv := quantize(c.Volume, volumeFactor)

		sOff := off + i*sampleSize
		sOff = putSigned(buf, sOff, w1, co-lastClose)
		sOff = putSigned(buf, sOff, w1, ch-lastClose)
		sOff = putSigned(buf, sOff, w1, cl-lastClose)
		sOff = putSigned(buf, sOff, w1, cc-lastClose)
		putSigned(buf, sOff, w3, cv-lastVolume)

		lastClose = cc
		lastVolume = cv
	}

	return buf, nil
}

// candleSampleSize is 4 price deltas (w1) plus one volume delta (w3).
func candleSampleSize(w1, w3 widthCode) int {
	return 4*bytesFor(w1) + bytesFor(w3)
}

// fillSentinel writes n sentinel-valued samples (4 price fields at w1, one
// volume field at w3) starting at buf[0:].
func fillSentinel(buf []byte, n int, w1, w3 widthCode) {
	sampleSize := candleSampleSize(w1, w3)
	sp := sentinel(w1)
	sv := sentinel(w3)
	for i := 0; i < n; i++ {
		off := i * sampleSize
		off = putSigned(buf, off, w1, sp)
		off = putSigned(buf, off, w1, sp)
		off = putSigned(buf, off, w1, sp)
		off = putSigned(buf, off, w1, sp)
		putSigned(buf, off, w3, sv)
	}
}

// DecodeCandles restores a day of candles from a blob produced by
// EncodeCandles. dayStart is the blob's key (UTC seconds, start of day) —
// the codec never embeds an absolute date (spec §4.2).
func DecodeCandles(blob []byte, dayStart uint64) (day [model.MinutesPerDay]model.Candle, priceDigits, volumeDigits int, err error) {
	if len(blob) < candleHeaderLen+2 {
		return day, 0, 0, fmt.Errorf("codec: DecodeCandles: %w: blob too short (%d bytes)", xerrors.ErrCorrupt, len(blob))
	}
	regA := blob[0]
	regB := blob[1]
	priceDigits = int(regA & 0x0F)
	volumeDigits = int((regA >> 4) & 0x0F)
	w0 := regB & 0x03
	w1 := (regB >> 2) & 0x03
	w2 := (regB >> 4) & 0x03
	w3 := (regB >> 6) & 0x03

	priceFactor := pow10(priceDigits)
	volumeFactor := pow10(volumeDigits)

	off := candleHeaderLen
	if off+bytesFor(w0)+bytesFor(w2) > len(blob) {
		return day, 0, 0, fmt.Errorf("codec: DecodeCandles: %w: header truncated", xerrors.ErrCorrupt)
	}
	basePriceU, off2 := getUnsigned(blob, off, w0)
	baseVolumeU, off3 := getUnsigned(blob, off2, w2)
	off = off3

	sampleSize := candleSampleSize(w1, w3)
	expected := off + model.MinutesPerDay*sampleSize
	if len(blob) != expected {
		return day, 0, 0, fmt.Errorf("codec: DecodeCandles: %w: expected %d bytes, got %d", xerrors.ErrCorrupt, expected, len(blob))
	}

	lastClose := int64(basePriceU)
	lastVolume := int64(baseVolumeU)
	sentinelP := sentinel(w1)

	for i := 0; i < model.MinutesPerDay; i++ {
		sOff := off + i*sampleSize
		do, p1 := getSigned(blob, sOff, w1)
		if do == sentinelP {
			continue // absent candle
		}
		dh, p2 := getSigned(blob, p1, w1)
		dl, p3 := getSigned(blob, p2, w1)
		dc, p4 := getSigned(blob, p3, w1)
		dv, _ := getSigned(blob, p4, w3)

		co := lastClose + do
		ch := lastClose + dh
		cl := lastClose + dl
		cc := lastClose + dc
		cv := lastVolume + dv

		day[i] = model.Candle{
			Open:      float64(co) / priceFactor,
			High:      float64(ch) / priceFactor,
			Low:       float64(cl) / priceFactor,
			Close:     float64(cc) / priceFactor,
			Volume:    float64(cv) / volumeFactor,
			Timestamp: dayStart + uint64(i)*model.SecondsPerMinute,
		}
		lastClose = cc
		lastVolume = cv
	}

	return day, priceDigits, volumeDigits, nil
}
