package demo

import (
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/vantalang/coordinator/pkg/types"
)

// writeArtifact writes one module's bytecode to dest and appends a
// length-delimited, protowire-encoded record describing it to
// dest/index.pb — a manifest that any system writing artifacts to a
// directory ends up wanting so a later tool can find what was produced
// without re-scanning the directory. The coordinator itself never reads
// this file back; it exists purely for downstream tooling.
//
// Each record has three fields: 1=symbol name (string), 2=symbol kind
// (varint), 3=artifact's path relative to dest (string). Records are
// framed with a varint length prefix so a reader can walk the file
// without a generated message type.
func (b *Backend) writeArtifact(dest, symbol string, kind types.SymbolKind, bytecode []byte) error {
	if dest == "" {
		return fmt.Errorf("demo: WriteArtifacts set but no destination path given")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("demo: create artifact dir: %w", err)
	}

	relPath := symbol + ".mod"
	if err := os.WriteFile(filepath.Join(dest, relPath), bytecode, 0o644); err != nil {
		return fmt.Errorf("demo: write artifact for %s: %w", symbol, err)
	}

	record := protowire.AppendTag(nil, 1, protowire.BytesType)
	record = protowire.AppendString(record, symbol)
	record = protowire.AppendTag(record, 2, protowire.VarintType)
	record = protowire.AppendVarint(record, uint64(kind))
	record = protowire.AppendTag(record, 3, protowire.BytesType)
	record = protowire.AppendString(record, relPath)

	framed := protowire.AppendVarint(nil, uint64(len(record)))
	framed = append(framed, record...)

	f, err := os.OpenFile(filepath.Join(dest, "index.pb"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("demo: open artifact index: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(framed); err != nil {
		return fmt.Errorf("demo: append to artifact index: %w", err)
	}
	return nil
}
