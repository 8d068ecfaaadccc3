package importer

import (
	"path/filepath"
	"slices"
	"strings"
)

// Filename keywords per platform. Matching is case-insensitive on the base name.
var (
	AlipayKeywords = []string{
		"支付宝", "alipay", "ali-pay", "zhifubao", "alipay_bill", "zfb",
		"支付宝账单", "alipay_export", "支付宝导出", "ali_export",
	}
	WeChatKeywords = []string{"微信", "wechat"}
	BankKeywords   = []string{
		"bank", "statement", "流水", "account",
		"icbc", "cmb", "ccb", "boc", "abc",
		"中国银行", "建设银行", "工商银行", "农业银行",
		"招商银行", "交通银行", "浦发银行", "中信银行",
		"光大银行", "华夏银行", "民生银行", "平安银行",
		"兴业银行", "广发银行", "邮储银行",
	}
)

// SuccessStatusKeywords mark a completed transaction. Anything else
// (pending, refunded, closed) is dropped without being reported.
var SuccessStatusKeywords = []string{"成功", "已收", "已转", "已送出", "支付成功", "收款成功", "交易完成"}

// MatchesKeywords reports whether the file's base name contains any keyword.
func MatchesKeywords(path string, keywords []string) bool {
	name := strings.ToLower(filepath.Base(path))
	return slices.ContainsFunc(keywords, func(kw string) bool {
		return strings.Contains(name, strings.ToLower(kw))
	})
}

// IsSuccessStatus reports whether status contains a success keyword.
func IsSuccessStatus(status string) bool {
	status = strings.TrimSpace(status)
	return slices.ContainsFunc(SuccessStatusKeywords, func(kw string) bool {
		return strings.Contains(status, kw)
	})
}

// HasExtension reports whether path ends with one of exts, ignoring case.
func HasExtension(path string, exts []string) bool {
	return slices.Contains(exts, strings.ToLower(filepath.Ext(path)))
}
