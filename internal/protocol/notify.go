package protocol

import (
	"sort"
	"strings"
)

// Notification texts keyed by the keys the core emits. Placeholders are
// {name} and are filled from the notification args.
var notifyText = map[string]string{
	"chunk.claimed":          "Chunk {chunk} claimed ({count}/{max}).",
	"chunk.already_claimed":  "You already claimed chunk {chunk}.",
	"chunk.claimed_by_other": "Chunk {chunk} is claimed by someone else.",
	"chunk.at_limit":         "You reached your claim limit ({count}/{max}).",
	"chunk.disabled":         "Chunk loading is disabled.",
	"chunk.unclaimed":        "Chunk {chunk} released ({count}/{max}).",
	"chunk.not_owned":        "You do not own chunk {chunk}.",
	"chunk.list":             "Claimed chunks ({count}/{max}): {chunks}",
	"chunk.info.unclaimed":   "Chunk {chunk} is not claimed.",
	"chunk.info.yours":       "Chunk {chunk} is yours and stays loaded.",
	"chunk.info.owned":       "Chunk {chunk} is claimed by {owner}.",
	"chunk.usage":            "Usage: claim | unclaim | list | info",
	"fell.ready":             "Tree feller ready.",
	"fell.cleared":           "Tree feller off.",
}

// NotifyText renders the text for key. Unknown keys render as the key
// itself so nothing the core sends is silently lost.
func NotifyText(key string, args map[string]string) string {
	tmpl, ok := notifyText[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, 2*len(args))
	for k, v := range args {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func NotifyKeys() []string {
	out := make([]string, 0, len(notifyText))
	for k := range notifyText {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func NewNotify(tick uint64, key string, args map[string]string) NotifyMsg {
	return NotifyMsg{
		Type:            TypeNotify,
		ProtocolVersion: Version,
		Tick:            tick,
		Key:             key,
		Args:            args,
		Text:            NotifyText(key, args),
	}
}
