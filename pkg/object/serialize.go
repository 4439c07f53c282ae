package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to its raw bytes (identity transform).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// sortName returns the name used for directory-aware ordering: directories
// compare as if their name carried a trailing slash, so "foo" (a file) sorts
// before "foo/" (a directory of the same prefix) the way a real tree would.
func sortName(e TreeEntry) string {
	if e.IsDir {
		return e.Name + "/"
	}
	return e.Name
}

// MarshalTree serializes a TreeObj into its canonical binary body: entries
// sorted by directory-aware name, each written as
//
//	"<mode_ascii> <name>\0" + <20-byte hash>
func MarshalTree(tr *TreeObj) []byte {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sortName(sorted[i]) < sortName(sorted[j])
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		mode := e.Mode
		if mode == "" {
			if e.IsDir {
				mode = TreeModeDir
			} else {
				mode = TreeModeFile
			}
		}
		buf.WriteString(mode)
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		raw, err := hex.DecodeString(string(e.Hash))
		if err != nil || len(raw) != 20 {
			raw = make([]byte, 20)
		}
		buf.Write(raw)
	}
	return buf.Bytes()
}

// UnmarshalTree parses a TreeObj from its canonical binary body.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("unmarshal tree: malformed entry header")
		}
		mode := string(data[:sp])
		rest := data[sp+1:]
		nul := bytes.IndexByte(rest, 0)
		if nul < 0 {
			return nil, fmt.Errorf("unmarshal tree: missing name terminator")
		}
		name := string(rest[:nul])
		rest = rest[nul+1:]
		if len(rest) < 20 {
			return nil, fmt.Errorf("unmarshal tree: truncated hash")
		}
		hash := Hash(hex.EncodeToString(rest[:20]))
		tr.Entries = append(tr.Entries, TreeEntry{
			Name:  name,
			Mode:  mode,
			IsDir: mode == TreeModeDir,
			Hash:  hash,
		})
		data = rest[20:]
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

func marshalIdentity(role string, id Identity) string {
	return fmt.Sprintf("%s %s <%s> %d %s\n", role, id.Name, id.Email, id.Seconds, id.TZOffset)
}

// parseIdentity parses "Name <email> seconds tz", bracketing the email so a
// name containing spaces (the common case) doesn't desync field counting.
func parseIdentity(role, line string) (Identity, error) {
	open := strings.IndexByte(line, '<')
	closeIdx := strings.IndexByte(line, '>')
	if open < 0 || closeIdx < open {
		return Identity{}, fmt.Errorf("unmarshal commit: malformed %s line %q", role, line)
	}
	name := strings.TrimSpace(line[:open])
	email := line[open+1 : closeIdx]

	fields := strings.Fields(line[closeIdx+1:])
	if len(fields) != 2 {
		return Identity{}, fmt.Errorf("unmarshal commit: malformed %s line %q", role, line)
	}
	seconds, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("unmarshal commit: bad %s timestamp: %w", role, err)
	}
	return Identity{Name: name, Email: email, Seconds: seconds, TZOffset: fields[1]}, nil
}

// MarshalCommit serializes a CommitObj into its canonical text body:
//
//	tree <hash>
//	parent <hash>     (0..N lines)
//	author <name> <<email>> <epoch> <±HHMM>
//	committer <name> <<email>> <epoch> <±HHMM>
//
//	<message>
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	buf.WriteString(marshalIdentity("author", c.Author))
	buf.WriteString(marshalIdentity("committer", c.Committer))
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its canonical text body.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			id, err := parseIdentity("author", val)
			if err != nil {
				return nil, err
			}
			c.Author = id
		case "committer":
			id, err := parseIdentity("committer", val)
			if err != nil {
				return nil, err
			}
			c.Committer = id
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	return c, nil
}
