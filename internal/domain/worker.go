package domain

import "time"

// PendingWorkerID — значение WorkerID, пока бэкенд не выдал табельный номер.
const PendingWorkerID = "pending"

// Worker — каноническая запись справочника работников.
//
// Worker собирается Normalizer'ом из сырого ответа бэкенда.
// После нормализации все поля имеют определённое значение:
// строки могут быть пустыми, числа — нулевыми, но не "отсутствующими".
// Единственное nullable поле — LastLogin.
type Worker struct {
	// ID — непрозрачный идентификатор записи на бэкенде.
	ID string `json:"id"`

	// WorkerID — бизнес-ключ (табельный номер, например "WRK-25-0042").
	// "pending", если номер ещё не выдан.
	WorkerID string `json:"workerId"`

	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Avatar string `json:"avatar"`

	// WorkerType — специализация работника.
	WorkerType WorkerType `json:"workerType"`

	// Zone — ID или имя зоны; пустая строка, если зона не назначена.
	Zone string `json:"zone"`

	// WorkerStatus — текущий статус жизненного цикла.
	WorkerStatus WorkerStatus `json:"workerStatus"`

	Shift Shift `json:"shift"`

	Performance Performance `json:"performance"`

	// LastLogin — время последнего входа (nil — никогда не входил).
	LastLogin *time.Time `json:"lastLogin"`

	// JoinedDate — дата приёма; zero value, если бэкенд её не прислал.
	JoinedDate time.Time `json:"joinedDate"`

	// CreatedAt — время создания записи; zero value, если неизвестно.
	CreatedAt time.Time `json:"createdAt"`
}

// Performance — показатели работника. Отсутствующие значения равны 0.
type Performance struct {
	Rating          float64 `json:"rating"`
	Efficiency      float64 `json:"efficiency"`
	TasksCompleted  float64 `json:"tasksCompleted"`
	BinsCollected   float64 `json:"binsCollected"`
	DistanceCovered float64 `json:"distanceCovered"`
}

// HasEmployeeID возвращает true, если табельный номер уже выдан.
func (w *Worker) HasEmployeeID() bool {
	return w.WorkerID != "" && w.WorkerID != PendingWorkerID
}

// LastActive возвращает время последней активности.
// Для работника, который ни разу не входил, — zero value (самое раннее время).
func (w *Worker) LastActive() time.Time {
	if w.LastLogin == nil {
		return time.Time{}
	}
	return *w.LastLogin
}

// Clone возвращает копию записи, не разделяющую указатели с оригиналом.
func (w Worker) Clone() Worker {
	if w.LastLogin != nil {
		t := *w.LastLogin
		w.LastLogin = &t
	}
	return w
}
