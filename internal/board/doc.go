// Package board держит локальную копию задач пользователя и согласует
// оптимистичные правки с ответами сервера.
//
// Каждая мутация применяется локально сразу, вместе с записью txn, в которой
// лежит цель отката. Если запрос к серверу упал, локальное состояние
// возвращается к снимку и выставляется сообщение об ошибке.
//
// На одну задачу в полёте может быть только одна мутация; массовая операция
// занимает общий слот и блокирует все остальные. Повторный вызов для занятой
// задачи просто игнорируется: он не ставится в очередь и не сливается с
// текущим.
//
// Удаление отложено: задача сразу пропадает из списка, а запрос уходит
// только по таймеру, который можно отменить через Undo.
package board
