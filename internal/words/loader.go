package words

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrMalformedModel is returned for a model file that cannot be decoded.
var ErrMalformedModel = errors.New("malformed word2vec model")

const (
	maxTermBytes   = 4096
	maxDim         = 1 << 16
	maxPrealloc    = 1 << 20
	progressEvents = 100
)

type loadOptions struct {
	normalize bool
	progress  func(loaded, total int)
	store     []StoreOption
}

type LoadOption func(*loadOptions)

// Normalize controls L2 normalization of vectors on load. On by default, so
// that the dot product of two loaded vectors is their cosine similarity.
func Normalize(on bool) LoadOption {
	return func(o *loadOptions) {
		o.normalize = on
	}
}

// WithProgress registers a callback invoked periodically while entries are
// decoded, and once more when loading completes.
func WithProgress(fn func(loaded, total int)) LoadOption {
	return func(o *loadOptions) {
		o.progress = fn
	}
}

// WithStoreOptions forwards options to the Store built by Load or Read.
func WithStoreOptions(opts ...StoreOption) LoadOption {
	return func(o *loadOptions) {
		o.store = append(o.store, opts...)
	}
}

// Load reads a word2vec binary model from path.
func Load(path string, opts ...LoadOption) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	return Read(f, opts...)
}

// Read decodes the word2vec binary format: a "<count> <dim>\n" header, then
// for every entry the term followed by a space and dim little-endian float32
// values. Newlines between entries are skipped.
func Read(r io.Reader, opts ...LoadOption) (*Store, error) {
	o := loadOptions{normalize: true}
	for _, opt := range opts {
		opt(&o)
	}

	hash := sha256.New()
	br := bufio.NewReaderSize(io.TeeReader(r, hash), 1<<16)

	count, dim, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrEmptyVocabulary
	}

	entries := make([]Entry, 0, min(count, maxPrealloc))
	raw := make([]byte, dim*4)
	step := max(count/progressEvents, 1)

	for i := 0; i < count; i++ {
		term, err := readTerm(br)
		if err != nil {
			return nil, malformedf("entry %d: %v", i, err)
		}
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, malformedf("entry %d (%q): truncated vector: %v", i, term, err)
		}

		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[j*4:]))
		}
		if o.normalize {
			normalize(vec)
		}
		entries = append(entries, Entry{Term: term, Vector: vec})

		if o.progress != nil && (i+1)%step == 0 {
			o.progress(i+1, count)
		}
	}

	// the fingerprint covers the whole input, trailing bytes included
	if _, err := io.Copy(io.Discard, br); err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	if o.progress != nil {
		o.progress(count, count)
	}

	storeOpts := append([]StoreOption{WithFingerprint(hex.EncodeToString(hash.Sum(nil)))}, o.store...)
	return New(entries, storeOpts...)
}

func readHeader(br *bufio.Reader) (count, dim int, err error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return 0, 0, malformedf("header: %v", err)
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, malformedf("header %q: want \"<count> <dim>\"", strings.TrimSpace(line))
	}
	count, err = strconv.Atoi(fields[0])
	if err != nil || count < 0 {
		return 0, 0, malformedf("header: bad vocabulary size %q", fields[0])
	}
	dim, err = strconv.Atoi(fields[1])
	if err != nil || dim <= 0 {
		return 0, 0, malformedf("header: bad dimension %q", fields[1])
	}
	if dim > maxDim {
		return 0, 0, malformedf("header: dimension %d exceeds %d", dim, maxDim)
	}
	return count, dim, nil
}

func readTerm(br *bufio.Reader) (string, error) {
	var b []byte
	for {
		c, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errors.New("truncated term")
			}
			return "", err
		}
		if c == '\n' && len(b) == 0 {
			continue
		}
		if c == ' ' {
			break
		}
		b = append(b, c)
		if len(b) > maxTermBytes {
			return "", fmt.Errorf("term longer than %d bytes", maxTermBytes)
		}
	}
	if len(b) == 0 {
		return "", errors.New("empty term")
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("term %q is not valid UTF-8", b)
	}
	return string(b), nil
}

// WriteBinary encodes entries in the format Read decodes. Every vector must
// have the same length.
func WriteBinary(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		return ErrEmptyVocabulary
	}
	dim := len(entries[0].Vector)

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d %d\n", len(entries), dim); err != nil {
		return err
	}
	buf := make([]byte, 4)
	for _, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("entry %q has dimension %d, want %d", e.Term, len(e.Vector), dim)
		}
		if _, err := bw.WriteString(e.Term + " "); err != nil {
			return err
		}
		for _, v := range e.Vector {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedModel, fmt.Sprintf(format, args...))
}
