//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa -framework AppKit
#import <Cocoa/Cocoa.h>
#import <AppKit/AppKit.h>

void setAccessoryPolicy(void) {
    [NSApp setActivationPolicy:NSApplicationActivationPolicyAccessory];
}

void activateApp(void) {
    [NSApp activateIgnoringOtherApps:YES];
}

void setKeyWindowFloating(int floating) {
    NSWindow *win = [NSApp keyWindow];
    if (win == nil) {
        win = [NSApp mainWindow];
    }
    if (win != nil) {
        [win setLevel:(floating ? NSFloatingWindowLevel : NSNormalWindowLevel)];
    }
}
*/
import "C"

// SetActivationPolicy keeps the app out of the Dock so it lives in the menu bar only
func SetActivationPolicy() {
	C.setAccessoryPolicy()
}

// ActivateApp brings the application to the front
func ActivateApp() {
	C.activateApp()
}

// SetFloating puts the focused window above normal windows, or back
func SetFloating(floating bool) {
	v := C.int(0)
	if floating {
		v = 1
	}
	C.setKeyWindowFloating(v)
}
