package core

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// CommandHandler executes one link command on behalf of the process that
// owns files. The handler decodes its own arguments from args; the
// returned value and error become the status reply.
type CommandHandler func(files *FileTable, args *[]byte) (uint32, error)

// Command is one entry of the link dictionary
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "handle=%c value=%*s"
	Handler CommandHandler
}

// ErrUnknownCommand is returned by Dispatch for unregistered IDs
var ErrUnknownCommand = errors.New("unknown command")

// CommandRegistry maps wire message IDs to handlers
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   map[uint16]*Command
	nameToID   map[string]uint16
	dictionary string
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// Register adds a command under a fixed ID. Registering the same ID or
// name twice is an error.
func (r *CommandRegistry) Register(id uint16, name string, format string, handler CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[id]; exists {
		return errors.New("command id " + itoa(int(id)) + " already registered")
	}
	if _, exists := r.nameToID[name]; exists {
		return errors.New("command " + name + " already registered")
	}

	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id
	r.rebuildDictionary()
	return nil
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// Lookup retrieves a command by name
func (r *CommandRegistry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for cmdID
func (r *CommandRegistry) Dispatch(files *FileTable, cmdID uint16, args *[]byte) (uint32, error) {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return 0, ErrUnknownCommand
	}
	return cmd.Handler(files, args)
}

// GetDictionary returns "id name format" lines sorted by ID
func (r *CommandRegistry) GetDictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// rebuildDictionary regenerates the dictionary string (caller holds mu)
func (r *CommandRegistry) rebuildDictionary() {
	ids := make([]int, 0, len(r.commands))
	for id := range r.commands {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	var b strings.Builder
	for _, id := range ids {
		cmd := r.commands[uint16(id)]
		b.WriteString(itoa(id))
		b.WriteByte(' ')
		b.WriteString(cmd.Name)
		if cmd.Format != "" {
			b.WriteByte(' ')
			b.WriteString(cmd.Format)
		}
		b.WriteByte('\n')
	}
	r.dictionary = b.String()
}
