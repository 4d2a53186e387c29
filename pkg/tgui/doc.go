// Package tgui holds small helpers for composing Telegram HTML messages.
//
// All builders return H, a marker type for text that is already safe to
// send with ParseMode="HTML".
package tgui
