package gitctx

import (
	"strings"
	"testing"
)

const twoFileDiff = `diff --git a/main.go b/main.go
index 1111111..2222222 100644
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
 package main
+import "fmt"
 
 func main() {}
diff --git a/util.go b/util.go
deleted file mode 100644
index 3333333..0000000
--- a/util.go
+++ /dev/null
@@ -1,2 +0,0 @@
-package main
-func helper() {}
`

func TestScopeDiff(t *testing.T) {
	got, err := ScopeDiff(twoFileDiff, []string{"util.go"})
	if err != nil {
		t.Fatalf("ScopeDiff: %v", err)
	}
	if files := got.Files(); len(files) != 1 || files[0] != "util.go" {
		t.Errorf("Files = %v, want [util.go]", files)
	}
	if strings.Contains(got.String(), "main.go") {
		t.Error("out-of-scope file leaked into scoped diff")
	}
	if !strings.Contains(got.String(), "-func helper() {}") {
		t.Errorf("scoped diff lost deleted lines:\n%s", got.String())
	}
	if got.Sections[0].Binary {
		t.Error("text file marked binary")
	}
}

func TestScopeDiff_Empty(t *testing.T) {
	got, err := ScopeDiff(twoFileDiff, nil)
	if err != nil || got.String() != "" || len(got.Files()) != 0 {
		t.Errorf("ScopeDiff(nil scope) = %+v, %v", got, err)
	}
	got, err = ScopeDiff("", []string{"main.go"})
	if err != nil || got.String() != "" {
		t.Errorf("ScopeDiff(empty diff) = %+v, %v", got, err)
	}
}
