package repository

import "errors"

var (
	ErrNotFound       = errors.New("запись не найдена")
	ErrRunningExists  = errors.New("у пользователя уже есть запущенный таймер")
	ErrAlreadyStopped = errors.New("таймер уже остановлен")
)
