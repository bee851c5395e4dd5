package git

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDiff = `diff --git a/src/lib.c b/src/lib.c
index 1111111..2222222 100644
--- a/src/lib.c
+++ b/src/lib.c
@@ -10,0 +11,2 @@ int parse(const char *s) {
+  if (!s) return -1;
+  check(s);
@@ -20 +22 @@ static int helper(int x) {
-  return x;
+  return x + 1;
@@ -30,2 +31,0 @@
-  dead();
-  dead();
diff --git a/old.c b/old.c
deleted file mode 100644
--- a/old.c
+++ /dev/null
@@ -1,3 +0,0 @@
-int old(void) {
-  return 0;
-}
diff --git a/fuzz/new_fuzzer.cc b/fuzz/new_fuzzer.cc
new file mode 100644
--- /dev/null
+++ b/fuzz/new_fuzzer.cc
@@ -0,0 +1,3 @@
+extern "C" int LLVMFuzzerTestOneInput(const uint8_t *d, size_t n) {
+  return 0;
+}
`

func TestParseDiff(t *testing.T) {
	changes, err := ParseDiff(strings.NewReader(sampleDiff))
	require.NoError(t, err)
	require.Len(t, changes, 2)

	assert.Equal(t, ChangedFile{Path: "src/lib.c", ChangedLines: []int{11, 12, 22}}, changes[0])
	assert.Equal(t, ChangedFile{Path: "fuzz/new_fuzzer.cc", ChangedLines: []int{1, 2, 3}}, changes[1])
}

func TestParseDiff_Empty(t *testing.T) {
	changes, err := ParseDiff(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, changes)
}
