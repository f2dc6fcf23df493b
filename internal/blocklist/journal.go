package blocklist

import (
	"database/sql"
	"fmt"
	"net/netip"
	"sync"

	_ "modernc.org/sqlite"
)

// Journal persists control-plane writes so the block-list survives restarts.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the sqlite journal at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS blocked_addresses (
  addr TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS blocked_ports (
  port INTEGER PRIMARY KEY
);
`)
	return err
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) putAddress(addr netip.Addr) error {
	_, err := j.db.Exec(`INSERT OR IGNORE INTO blocked_addresses(addr) VALUES(?)`, addr.String())
	return err
}

func (j *Journal) deleteAddress(addr netip.Addr) error {
	_, err := j.db.Exec(`DELETE FROM blocked_addresses WHERE addr = ?`, addr.String())
	return err
}

func (j *Journal) putPort(port uint16) error {
	_, err := j.db.Exec(`INSERT OR IGNORE INTO blocked_ports(port) VALUES(?)`, int(port))
	return err
}

func (j *Journal) deletePort(port uint16) error {
	_, err := j.db.Exec(`DELETE FROM blocked_ports WHERE port = ?`, int(port))
	return err
}

// Load reads every persisted entry.
func (j *Journal) Load() (Seeds, error) {
	var s Seeds

	rows, err := j.db.Query(`SELECT addr FROM blocked_addresses ORDER BY addr`)
	if err != nil {
		return Seeds{}, err
	}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			rows.Close()
			return Seeds{}, err
		}
		addr, err := netip.ParseAddr(text)
		if err != nil {
			rows.Close()
			return Seeds{}, fmt.Errorf("journal holds invalid address %q: %w", text, err)
		}
		s.Addresses = append(s.Addresses, addr)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Seeds{}, err
	}
	rows.Close()

	rows, err = j.db.Query(`SELECT port FROM blocked_ports ORDER BY port`)
	if err != nil {
		return Seeds{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var port int
		if err := rows.Scan(&port); err != nil {
			return Seeds{}, err
		}
		s.Ports = append(s.Ports, uint16(port))
	}
	return s, rows.Err()
}

// Restore replays persisted entries into w.
func (j *Journal) Restore(w Writer) error {
	s, err := j.Load()
	if err != nil {
		return fmt.Errorf("load journal: %w", err)
	}
	return Seed(w, s)
}

// Persistent is a Writer that applies each change to the wrapped writer and
// then records it in the journal. When the journal write fails the change is
// undone, so the live tables never hold an entry the journal lacks or lack
// one it holds.
type Persistent struct {
	Writer
	journal *Journal
	mu      sync.Mutex
}

// NewPersistent wraps w so that writes are journaled. Rollback consults w
// through Reader when it implements it.
func NewPersistent(w Writer, j *Journal) *Persistent {
	return &Persistent{Writer: w, journal: j}
}

// had reports whether the wrapped writer held the key before the change.
// Without a Reader it assumes the change was not a no-op.
func (p *Persistent) had(lookup func(Reader) bool, assume bool) bool {
	r, ok := p.Writer.(Reader)
	if !ok {
		return assume
	}
	return lookup(r)
}

func (p *Persistent) InsertAddress(addr netip.Addr) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	had := p.had(func(r Reader) bool { return r.IsBlockedAddress(addr) }, false)
	if err := p.Writer.InsertAddress(addr); err != nil {
		return err
	}
	if err := p.journal.putAddress(addr.Unmap()); err != nil {
		if !had {
			_ = p.Writer.RemoveAddress(addr)
		}
		return fmt.Errorf("journal insert %s: %w", addr, err)
	}
	return nil
}

func (p *Persistent) RemoveAddress(addr netip.Addr) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	had := p.had(func(r Reader) bool { return r.IsBlockedAddress(addr) }, true)
	if err := p.Writer.RemoveAddress(addr); err != nil {
		return err
	}
	if err := p.journal.deleteAddress(addr.Unmap()); err != nil {
		if had {
			_ = p.Writer.InsertAddress(addr)
		}
		return fmt.Errorf("journal remove %s: %w", addr, err)
	}
	return nil
}

func (p *Persistent) InsertPort(port uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	had := p.had(func(r Reader) bool { return r.IsBlockedPort(port) }, false)
	if err := p.Writer.InsertPort(port); err != nil {
		return err
	}
	if err := p.journal.putPort(port); err != nil {
		if !had {
			_ = p.Writer.RemovePort(port)
		}
		return fmt.Errorf("journal insert port %d: %w", port, err)
	}
	return nil
}

func (p *Persistent) RemovePort(port uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	had := p.had(func(r Reader) bool { return r.IsBlockedPort(port) }, true)
	if err := p.Writer.RemovePort(port); err != nil {
		return err
	}
	if err := p.journal.deletePort(port); err != nil {
		if had {
			_ = p.Writer.InsertPort(port)
		}
		return fmt.Errorf("journal remove port %d: %w", port, err)
	}
	return nil
}
