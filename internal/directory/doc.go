// Package directory — ядро справочника работников.
//
// Directory владеет канонической коллекцией: загружает её через resolver,
// нормализует и атомарно заменяет (побеждает последняя начатая загрузка).
// Смена статуса проходит через lifecycle, сохраняется PATCH'ем и только
// после подтверждения применяется локально и уходит получателям событий.
//
// Projector строит отфильтрованное представление с debounce,
// Poller обновляет справочник и зоны по расписанию.
package directory
