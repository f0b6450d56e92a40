package story

// attempt - результат фазы конвейера: значение или ошибка.
// Фазы связываются через andThen, первая ошибка пропускает остальные фазы.
type attempt[T any] struct {
	val T
	err error
}

func try[T any](v T, err error) attempt[T] {
	return attempt[T]{val: v, err: err}
}

func andThen[T, U any](a attempt[T], f func(T) (U, error)) attempt[U] {
	if a.err != nil {
		return attempt[U]{err: a.err}
	}
	return try(f(a.val))
}

// orElse возвращает значение или результат восстановления после ошибки.
func (a attempt[T]) orElse(recover func(error) T) T {
	if a.err != nil {
		return recover(a.err)
	}
	return a.val
}
