// Package engine маршрутизирует исходящие сообщения по каналам.
//
// WorkflowEngine по тройке (target, origin, sender) выбирает наиболее
// специфичное правило ChannelRule:
//
//  1. Правило подходит, если его targets содержат target или "*",
//     а заданные origin/sender совпадают с запросом.
//  2. Выигрывает правило с большим числом заданных критериев.
//  3. При равенстве — правило, где target указан явно, затем по имени.
//  4. Если ничего не подошло — локальный канал узла.
//
// Каналы кэшируются по имени вида "<bus>.<target>[___<origin>][___<sender>]".
// Плагины, подключённые через AttachPluginToAllChannels, применяются
// к уже созданным каналам и ко всем будущим.
package engine
