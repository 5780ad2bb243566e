// Where: internal/domain/invoice/filename.go
// What: Invoice attributes encoded in the uploaded file name.
// Why: The bookkeeping convention names files DATE_VENDOR_AMOUNT[_MEMO].pdf.
package invoice

import (
	"path"
	"strconv"
	"strings"
	"time"
)

// Memo values written when the file name does not carry everything.
const (
	MemoAmountToConfirm = "要金額確認"
	MemoAnnual          = "年間データ"
	MemoUnknownFormat   = "形式不明"
	MemoParseError      = "パースエラー"
)

// Parsed holds what the file name says about the invoice. Names outside the
// convention still produce a record so the upload is not lost from the
// ledger. Fields are taken from the name as written; Recognized is false when
// the shape is unknown or the date is not a calendar date.
type Parsed struct {
	FileName   string
	Date       string // YYYYMMDD
	Vendor     string
	Amount     int64
	Memo       string
	Recognized bool
}

// ParseName extracts invoice fields from a key or file name. Accepted shapes:
//
//	20241031_Amazon_1000_Memo.pdf
//	20241031_Amazon_1000.pdf
//	202410_Visa.pdf   (monthly statement, amount to confirm)
//	2024_Visa.pdf     (annual statement)
//
// A two-part name whose first part is neither six nor four characters long
// is recorded with no fields and no memo.
func ParseName(key string) Parsed {
	fileName := path.Base(key)
	stem := strings.TrimSuffix(fileName, path.Ext(fileName))
	parts := strings.Split(stem, "_")
	out := Parsed{FileName: fileName}

	var layout string
	switch len(parts) {
	case 4, 3:
		amount, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			out.Memo = MemoParseError
			return out
		}
		out.Date = parts[0]
		out.Vendor = parts[1]
		out.Amount = amount
		if len(parts) == 4 {
			out.Memo = parts[3]
		}
		layout = "20060102"
	case 2:
		switch len(parts[0]) {
		case 6:
			out.Date = parts[0] + "01"
			out.Memo = MemoAmountToConfirm
			layout = "200601"
		case 4:
			out.Date = parts[0] + "0101"
			out.Memo = MemoAnnual
			layout = "2006"
		default:
			return out
		}
		out.Vendor = parts[1]
	default:
		out.Memo = MemoUnknownFormat
		return out
	}

	out.Recognized = validDate(parts[0], layout) && out.Amount >= 0 && strings.TrimSpace(out.Vendor) != ""
	return out
}

// validDate reports whether raw is a calendar date in layout. Monthly and
// annual dates are padded to YYYYMMDD by the caller so they sort with daily
// ones.
func validDate(raw, layout string) bool {
	if len(raw) != len(layout) {
		return false
	}
	_, err := time.Parse(layout, raw)
	return err == nil
}
