package message

import (
	"fmt"
	"strings"
	"unicode"
)

// Prefix — общий префикс имён workflow-сообщений.
const Prefix = "processing-message"

// Зарезервированные имена служебных сообщений.
const (
	LogMessageName         = "processing-log-message"
	StartSubProcessName    = "processing-start-sub-process"
	SubProcessFinishedName = "processing-sub-process-finished"
)

// Suffix — вид workflow-сообщения.
type Suffix string

const (
	SuffixCollectData   Suffix = "collect-data"
	SuffixDataCollected Suffix = "data-collected"
	SuffixProcessData   Suffix = "process-data"
	SuffixDataProcessed Suffix = "data-processed"
)

var suffixes = []Suffix{SuffixCollectData, SuffixDataCollected, SuffixProcessData, SuffixDataProcessed}

// Kind возвращает вид сообщения для суффикса.
func (s Suffix) Kind() Kind {
	switch s {
	case SuffixCollectData, SuffixProcessData:
		return KindCommand
	default:
		return KindEvent
	}
}

// NormalizeTypeName приводит имя типа к виду, пригодному для имени сообщения:
// нижний регистр, группы прочих символов заменяются на "-".
func NormalizeTypeName(typeName string) string {
	var b strings.Builder
	dash := false
	for _, r := range typeName {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// NameFor возвращает имя workflow-сообщения для типа и суффикса.
func NameFor(typeName string, suffix Suffix) string {
	return Prefix + "-" + NormalizeTypeName(typeName) + "-" + string(suffix)
}

// ParseName разбирает имя workflow-сообщения на нормализованный тип и суффикс.
func ParseName(name string) (string, Suffix, error) {
	rest, ok := strings.CutPrefix(name, Prefix+"-")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidMessageName, name)
	}
	for _, s := range suffixes {
		if typ, ok := strings.CutSuffix(rest, "-"+string(s)); ok && typ != "" {
			return typ, s, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q", ErrInvalidMessageName, name)
}

// IsWorkflowMessageName проверяет, является ли имя именем workflow-сообщения.
func IsWorkflowMessageName(name string) bool {
	_, _, err := ParseName(name)
	return err == nil
}
