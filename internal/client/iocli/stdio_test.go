package iocli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Проверяем что NewStdio возвращает валидный объект
func TestNewStdio(t *testing.T) {
	stdio := NewStdio()
	assert.NotNil(t, stdio)
}

func TestPrintlnAndPrintf(t *testing.T) {
	var out bytes.Buffer
	stdio := New(strings.NewReader(""), &out)

	stdio.Println("hello", "world")
	stdio.Printf("test %d %s", 1, "abc")
	_, err := stdio.Write([]byte("!"))
	require.NoError(t, err)

	assert.Equal(t, "hello world\ntest 1 abc!", out.String())
}

func TestReadInput(t *testing.T) {
	var out bytes.Buffer
	stdio := New(strings.NewReader("user input\nsecond"), &out)

	result, err := stdio.ReadInput("Prompt: ")
	require.NoError(t, err)
	assert.Equal(t, "user input", result)
	assert.Equal(t, "Prompt: ", out.String())

	// Последняя строка без перевода строки тоже читается
	result, err = stdio.ReadInput("")
	require.NoError(t, err)
	assert.Equal(t, "second", result)

	_, err = stdio.ReadInput("")
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadAll(t *testing.T) {
	stdio := New(strings.NewReader(`{"text":"piped"}`+"\n"), io.Discard)

	data, err := stdio.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, `{"text":"piped"}`+"\n", string(data))
}
