// Package lifecycle реализует конечный автомат статусов работника.
//
// Таблица переходов:
//
//	pending   → active*, inactive*, rejected*
//	active    → onLeave, suspended*, inactive*
//	available → active, onLeave, suspended*, inactive*
//	onLeave   → active, inactive*
//	suspended → active*, inactive*
//	inactive  → active
//	rejected  → pending* (повторное открытие заявки)
//
// Переходы, отмеченные *, разрешены только администратору.
//
// ApplyTransition чистая: не ходит в сеть и не меняет входную запись.
// Сохранение результата на бэкенде выполняет вызывающий код (directory).
package lifecycle
