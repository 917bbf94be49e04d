package engine

import (
	"slices"
	"strings"

	"github.com/shaiso/Conveyor/internal/message"
)

// Wildcard в targets правила подходит к любому target.
const Wildcard = "*"

// nameSeparator разделяет части имени канала.
const nameSeparator = "___"

// BusKind — вид шины: команды или события.
type BusKind string

const (
	CommandBus BusKind = "command_bus"
	EventBus   BusKind = "event_bus"
)

// BusKindOf возвращает вид шины для сообщения.
func BusKindOf(msg message.Message) BusKind {
	if msg.Header().Kind == message.KindCommand {
		return CommandBus
	}
	return EventBus
}

// ChannelRule — правило выбора канала.
type ChannelRule struct {
	// Name — имя правила в конфигурации.
	Name string

	// Targets — получатели; может содержать Wildcard.
	Targets []string

	// Origin и Sender — необязательные критерии; nil означает "любой".
	Origin *string
	Sender *string

	// Plugins — имена плагинов, подключаемых к каналу по порядку.
	Plugins []string

	// Dispatcher — имя удалённого диспетчера; пусто — локальный Router.
	Dispatcher string
}

// NamesTarget проверяет, указан ли target в правиле явно.
func (r ChannelRule) NamesTarget(target string) bool {
	return slices.Contains(r.Targets, target)
}

// Matches проверяет, подходит ли правило к запросу.
func (r ChannelRule) Matches(target, origin, sender string) bool {
	if !r.NamesTarget(target) && !slices.Contains(r.Targets, Wildcard) {
		return false
	}
	if r.Origin != nil && *r.Origin != origin {
		return false
	}
	if r.Sender != nil && *r.Sender != sender {
		return false
	}
	return true
}

// Score возвращает число заданных критериев (0, 1 или 2).
func (r ChannelRule) Score() int {
	score := 0
	if r.Origin != nil {
		score++
	}
	if r.Sender != nil {
		score++
	}
	return score
}

// beats сообщает, предпочтительнее ли r, чем o, для target.
func (r ChannelRule) beats(o ChannelRule, target string) bool {
	if r.Score() != o.Score() {
		return r.Score() > o.Score()
	}
	if rl, ol := r.NamesTarget(target), o.NamesTarget(target); rl != ol {
		return rl
	}
	return r.Name < o.Name
}

// Resolve выбирает лучшее подходящее правило.
func Resolve(rules []ChannelRule, target, origin, sender string) (ChannelRule, bool) {
	var best ChannelRule
	found := false
	for _, r := range rules {
		if !r.Matches(target, origin, sender) {
			continue
		}
		if !found || r.beats(best, target) {
			best = r
			found = true
		}
	}
	return best, found
}

// ChannelName строит имя канала для правила.
//
// Части origin/sender добавляются, только если правило их ограничивает.
// При ограничении только по sender часть origin остаётся пустой, чтобы
// имена правил "только origin" и "только sender" не совпадали.
func ChannelName(kind BusKind, target string, rule ChannelRule) string {
	var b strings.Builder
	b.WriteString(string(kind))
	b.WriteByte('.')
	b.WriteString(target)
	if rule.Origin != nil || rule.Sender != nil {
		b.WriteString(nameSeparator)
		if rule.Origin != nil {
			b.WriteString(*rule.Origin)
		}
	}
	if rule.Sender != nil {
		b.WriteString(nameSeparator)
		b.WriteString(*rule.Sender)
	}
	return b.String()
}

// localPrefix отделяет локальный канал от каналов правил, имена которых
// начинаются с вида шины.
const localPrefix = "local."

// localChannelName возвращает имя локального канала узла.
func localChannelName(kind BusKind, node string) string {
	return localPrefix + string(kind) + "." + node
}
