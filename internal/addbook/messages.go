package addbook

type MessageKind string

const (
	MessageNotFound     MessageKind = "not_found"
	MessageLookupFailed MessageKind = "lookup_failed"
	MessageUploadFailed MessageKind = "upload_failed"
	MessageSaveFailed   MessageKind = "save_failed"
)

var messageTexts = map[MessageKind]string{
	MessageNotFound:     "本が見つかりませんでした",
	MessageLookupFailed: "検索に失敗しました",
	MessageUploadFailed: "画像のアップロードに失敗しました",
	MessageSaveFailed:   "保存に失敗しました",
}

// Message is the user-visible notice a form operation left behind.
type Message struct {
	Kind MessageKind `json:"kind"`
	Text string      `json:"text"`
}

func newMessage(kind MessageKind) *Message {
	return &Message{Kind: kind, Text: messageTexts[kind]}
}
