package model

import "github.com/forPelevin/gomoji"

// TapbackKind identifies a reaction type.
type TapbackKind string

const (
	Love      TapbackKind = "love"
	Like      TapbackKind = "like"
	Dislike   TapbackKind = "dislike"
	Laugh     TapbackKind = "laugh"
	Emphasize TapbackKind = "emphasize"
	Question  TapbackKind = "question"
	// CustomEmoji is a reaction carrying an arbitrary single emoji.
	CustomEmoji TapbackKind = "emoji"
	Unknown     TapbackKind = "unknown"
)

// TapbackKinds lists the classic reactions in display order.
var TapbackKinds = []TapbackKind{Love, Like, Dislike, Laugh, Emphasize, Question}

var tapbackEmoji = map[TapbackKind]string{
	Love:      "❤️",
	Like:      "👍",
	Dislike:   "👎",
	Laugh:     "😂",
	Emphasize: "‼️",
	Question:  "❓",
}

// Reaction is a parsed tapback type.
type Reaction struct {
	Kind  TapbackKind
	Emoji string
}

// ParseTapback classifies a raw tapback type. Classic kinds map to their
// emoji; a value that is exactly one emoji becomes a custom reaction;
// everything else is Unknown.
func ParseTapback(raw string) Reaction {
	kind := TapbackKind(raw)
	if e, ok := tapbackEmoji[kind]; ok {
		return Reaction{Kind: kind, Emoji: e}
	}
	if isSingleEmoji(raw) {
		return Reaction{Kind: CustomEmoji, Emoji: raw}
	}
	return Reaction{Kind: Unknown}
}

// Key groups reactions: classic kinds by kind, custom ones by emoji.
func (r Reaction) Key() string {
	if r.Kind == CustomEmoji {
		return string(r.Kind) + ":" + r.Emoji
	}
	return string(r.Kind)
}

func isSingleEmoji(s string) bool {
	found := gomoji.CollectAll(s)
	return len(found) == 1 && found[0].Character == s
}
