// Package normalize превращает сырые записи бэкенда произвольной формы
// в канонический domain.Worker.
//
// Бэкенд исторически отдаёт одну и ту же сущность в разных формах:
// поля лежат в корне, во вложенном workerDetails, под альтернативными
// именами (userId вместо workerId, phoneNumber вместо phone).
//
// Каждое поле разрешается явным упорядоченным списком правил
// (predicate, extractor): срабатывает первое правило, чей predicate
// вернул true, иначе берётся значение по умолчанию. Каждое правило
// тестируется отдельно; неявного duck-typing нет.
//
// Normalize тотальна: для любого входа (включая не-объекты) возвращается
// Worker с заполненными полями и никогда не паникует.
package normalize
