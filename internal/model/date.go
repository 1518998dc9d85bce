package model

import "time"

// DateOf は時刻を暦日(UTCの0時)に切り詰めます
// タイムゾーンは引数の時刻のものを使って年月日を取り出します
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween はfromからtoまでの暦日数を返します
// 夏時間の影響を受けないよう暦日同士で差を取ります
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// Nights はチェックインからチェックアウトまでの各泊の開始日を返します
func Nights(checkIn, checkOut time.Time) []time.Time {
	n := DaysBetween(checkIn, checkOut)
	if n <= 0 {
		return nil
	}
	start := DateOf(checkIn)
	nights := make([]time.Time, n)
	for i := range nights {
		nights[i] = start.AddDate(0, 0, i)
	}
	return nights
}
