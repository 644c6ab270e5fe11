// Package version хранит информацию о сборке, заполняемую через -ldflags.
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// String — строка для стартового лога и health-эндпоинта.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
