package repository

// SocketDirectory определяет разделяемый справочник соединений:
// отображение connection id <-> идентичность игрока, доступное любому
// инстансу. Позволяет процессу, не держащему соединение, выяснить,
// кому оно принадлежит, и наоборот.
type SocketDirectory interface {
	// Bind связывает соединение с игроком. Идемпотентна и безопасна
	// при конкурентных вызовах с разных инстансов (две вкладки).
	Bind(connID string, playerID string) error

	// Resolve возвращает идентичность владельца соединения
	// (apperrors.ErrNotFound, если соединение не привязано)
	Resolve(connID string) (string, error)

	// Connections возвращает все соединения игрока
	Connections(playerID string) ([]string, error)

	// ClaimSingle привязывает новое соединение и возвращает соединения,
	// существовавшие у игрока ДО привязки. Чтение старого набора и запись
	// нового выполняются одним батчем, чтобы не потерять конкурентные
	// обновления.
	ClaimSingle(connID string, playerID string) ([]string, error)

	// Unbind снимает привязку соединения
	Unbind(connID string) error
}
