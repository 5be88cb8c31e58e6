// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

import (
	"fmt"
	"time"
)

// BCDTime is the 8-byte binary-coded-decimal timestamp used by the
// Private Header and Extended User Header. Each field holds two
// decimal digits, one per nibble.
type BCDTime struct {
	YearMSB    uint8
	YearLSB    uint8
	Month      uint8
	Day        uint8
	Hour       uint8
	Minutes    uint8
	Seconds    uint8
	Hundredths uint8
}

// BCDTimeFromTime converts t (in UTC) to BCD.
func BCDTimeFromTime(t time.Time) BCDTime {
	t = t.UTC()
	year := t.Year()
	return BCDTime{
		YearMSB:    toBCD(year / 100 % 100),
		YearLSB:    toBCD(year % 100),
		Month:      toBCD(int(t.Month())),
		Day:        toBCD(t.Day()),
		Hour:       toBCD(t.Hour()),
		Minutes:    toBCD(t.Minute()),
		Seconds:    toBCD(t.Second()),
		Hundredths: toBCD(t.Nanosecond() / 10_000_000),
	}
}

// Time converts back to a UTC time. Nibbles above 9 are not checked;
// a corrupt timestamp yields a nonsense but non-panicking time.
func (b BCDTime) Time() time.Time {
	year := fromBCD(b.YearMSB)*100 + fromBCD(b.YearLSB)
	return time.Date(year, time.Month(fromBCD(b.Month)), fromBCD(b.Day),
		fromBCD(b.Hour), fromBCD(b.Minutes), fromBCD(b.Seconds),
		fromBCD(b.Hundredths)*10_000_000, time.UTC)
}

// IsZero reports whether every field is zero.
func (b BCDTime) IsZero() bool {
	return b == BCDTime{}
}

// Hex returns the 16 hex digits of the raw bytes. Because every
// nibble is a decimal digit this reads as YYYYMMDDhhmmssxx and sorts
// chronologically.
func (b BCDTime) Hex() string {
	return fmt.Sprintf("%02X%02X%02X%02X%02X%02X%02X%02X",
		b.YearMSB, b.YearLSB, b.Month, b.Day,
		b.Hour, b.Minutes, b.Seconds, b.Hundredths)
}

// String formats the timestamp for people: "2026-03-14 09:26:53.58".
func (b BCDTime) String() string {
	return fmt.Sprintf("%02X%02X-%02X-%02X %02X:%02X:%02X.%02X",
		b.YearMSB, b.YearLSB, b.Month, b.Day,
		b.Hour, b.Minutes, b.Seconds, b.Hundredths)
}

func (b *BCDTime) read(r *reader) {
	b.YearMSB = r.u8()
	b.YearLSB = r.u8()
	b.Month = r.u8()
	b.Day = r.u8()
	b.Hour = r.u8()
	b.Minutes = r.u8()
	b.Seconds = r.u8()
	b.Hundredths = r.u8()
}

func (b BCDTime) write(w *writer) {
	w.u8(b.YearMSB)
	w.u8(b.YearLSB)
	w.u8(b.Month)
	w.u8(b.Day)
	w.u8(b.Hour)
	w.u8(b.Minutes)
	w.u8(b.Seconds)
	w.u8(b.Hundredths)
}

func toBCD(value int) uint8 {
	return uint8((value/10)%10<<4 | value%10)
}

func fromBCD(value uint8) int {
	return int(value>>4)*10 + int(value&0x0F)
}
