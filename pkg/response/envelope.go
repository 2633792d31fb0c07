package response

// Envelope はクライアントに返す唯一のレスポンス形式。
type Envelope struct {
	// Indicator は処理の成否。
	Indicator bool `json:"indicator" yaml:"indicator"`
	// Message は人間が読むためのメッセージ。
	Message string `json:"message" yaml:"message"`
	// Content は任意のペイロード。
	Content any `json:"content" yaml:"content"`
}

// True は成功エンベロープを生成する。
func True(message string, content any) Envelope {
	return Envelope{Indicator: true, Message: message, Content: content}
}

// False は失敗エンベロープを生成する。
// エラーとして伝播させたい場合は Fail を使う。
func False(message string, content any) Envelope {
	return Envelope{Indicator: false, Message: message, Content: content}
}

// Enveloper は自身をエンベロープとして表現できるエラーを表す。
type Enveloper interface {
	Envelope() Envelope
}
