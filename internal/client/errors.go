package client

import "errors"

var (
	ErrConflict     = errors.New("у пользователя уже есть запущенный таймер")
	ErrInvalidState = errors.New("операция невозможна в текущем состоянии таймера")
	ErrNotFound     = errors.New("запись не найдена")
	ErrValidation   = errors.New("сервер отклонил запрос как некорректный")
	ErrUnauthorized = errors.New("не передан идентификатор пользователя")
)
