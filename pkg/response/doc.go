// Package response はAPIレスポンスの共通エンベロープと、エラーからエンベロープへの変換を提供する。
//
// 成功・失敗のどちらも {"indicator": bool, "message": string, "content": any} の形で返す。
// 業務上の失敗は IndicatorFalseError、実装者の設定ミスは DevelopmentError で表現し、
// ErrorHandler が唯一の変換点となる。
package response
