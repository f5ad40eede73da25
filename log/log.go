package log

import (
	"fmt"
	"os"
	"time"
)

var debugOn = false

// SetDebug turns debug output on or off at runtime.
func SetDebug(on bool) {
	debugOn = on
}

func stamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func Errorf(format string, args ...interface{}) {
	fmt.Printf(stamp()+": "+format+"\n", args...)
}

func Debugf(format string, args ...interface{}) {
	if debugOn {
		fmt.Printf(stamp()+": "+format+"\n", args...)
	}
}

func Infof(format string, args ...interface{}) {
	fmt.Printf(stamp()+": "+format+"\n", args...)
}

func Printf(format string, args ...interface{}) {
	fmt.Printf(stamp()+": "+format+"\n", args...)
}

func Info(args ...interface{}) {
	fmt.Print(stamp() + ": ")
	fmt.Print(args...)
	fmt.Print("\n")
}

func Error(args ...interface{}) {
	fmt.Print(args...)
	fmt.Print("\n")
}

func Debug(args ...interface{}) {
	if debugOn {
		fmt.Print(stamp() + ": ")
		fmt.Print(args...)
		fmt.Print("\n")
	}
}

// Fatalf logs the message and exits. Only for unrecoverable startup errors;
// the control cycle never calls this.
func Fatalf(format string, args ...interface{}) {
	fmt.Printf(stamp()+": FATAL: "+format+"\n", args...)
	os.Exit(1)
}
