package journal

// ============================================================================
// 校驗和計算
// 職責：計算與驗證 journal 事件的 CRC32 校驗和
// ============================================================================

import (
	"hash/crc32"
	"strconv"
	"strings"
)

// CalculateChecksum 計算事件的 CRC32 校驗和
//
// 演算法：
// - 將 Kind|PlayerID|Seq|From|To 串接成字串
// - 使用 CRC32-IEEE 多項式計算
// - 不包含 Timestamp 與浮點欄位
func CalculateChecksum(event Event) uint32 {
	var b strings.Builder
	b.WriteString(string(event.Kind))
	b.WriteByte('|')
	b.WriteString(string(event.PlayerID))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(event.Seq, 10))
	b.WriteByte('|')
	b.WriteString(event.From)
	b.WriteByte('|')
	b.WriteString(event.To)
	return crc32.ChecksumIEEE([]byte(b.String()))
}

// VerifyChecksum 驗證事件的校驗和是否正確
func VerifyChecksum(event Event) bool {
	return event.Checksum == CalculateChecksum(event)
}
