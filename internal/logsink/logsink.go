// Package logsink ukládá logy přijaté z MQTT do souborů, jeden soubor na službu.
package logsink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrBadTopic vrací ServiceFromTopic pro topic, ze kterého nejde vyčíst služba.
var ErrBadTopic = errors.New("topic neobsahuje název služby")

// Sink zapisuje řádky logů do <Dir>/<služba>.log.
// Používáme pattern "Open-Write-Close" pro každý zápis, takže rotace logů (logrotate) nic nerozbije.
type Sink struct {
	dir string
	mu  sync.Mutex // zápisy jedné služby se nesmí proložit
}

// New připraví adresář (včetně podadresářů) a vrátí Sink.
func New(dir string) (*Sink, error) {
	// 0755: Vlastník může psát, ostatní číst/spouštět.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("nelze vytvořit adresář pro logy: %w", err)
	}
	return &Sink{dir: dir}, nil
}

// ServiceFromTopic vrátí název služby z topicu logs/<služba>[/...].
func ServiceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[1] == "" || parts[1] == "." || parts[1] == ".." {
		return "", fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	return parts[1], nil
}

// Path vrací cestu k souboru dané služby.
func (s *Sink) Path(service string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.log", service))
}

// Append připíše jeden řádek na konec souboru služby.
func (s *Sink) Append(service string, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// O_APPEND: Psát na konec. O_CREATE: Vytvořit, pokud neexistuje.
	f, err := os.OpenFile(s.Path(service), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	// MQTT payload nový řádek mít nemusí.
	if _, err := f.Write(line); err != nil {
		return err
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		if _, err := f.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}

// HandleMessage uloží log přijatý na daném topicu.
func (s *Sink) HandleMessage(topic string, payload []byte) error {
	service, err := ServiceFromTopic(topic)
	if err != nil {
		return err
	}
	if err := s.Append(service, payload); err != nil {
		return fmt.Errorf("zápis logu služby %s: %w", service, err)
	}
	return nil
}
