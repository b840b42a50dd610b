package tlsmaterial

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// TrustCA adds (or, if remove is true, removes) the CA certificate from the
// current platform's system trust store. macOS and Linux are supported
// directly by shelling out to the platform's own trust-store tool; other
// platforms get instructions to do it by hand.
func (m *Manager) TrustCA(remove bool) error {
	if !fileExists(m.cfg.CACertPath) {
		return fmt.Errorf("CA certificate not found at %s; start the daemon with --tls first", m.cfg.CACertPath)
	}

	switch runtime.GOOS {
	case "darwin":
		if remove {
			return removeCADarwin(m.cfg.CACertPath)
		}
		return addCADarwin(m.cfg.CACertPath)
	case "linux":
		if remove {
			return removeCALinux()
		}
		return addCALinux(m.cfg.CACertPath)
	default:
		fmt.Printf("Automatic trust store installation is not supported on %s.\n", runtime.GOOS)
		fmt.Printf("Manually trust the CA certificate at: %s\n", m.cfg.CACertPath)
		return nil
	}
}

func addCADarwin(caPath string) error {
	fmt.Println("Adding CA to macOS system trust store...")

	// Best-effort: drop any stale entry with the same name before adding.
	_ = exec.Command("security", "delete-certificate", "-c", caCommonName, "/Library/Keychains/System.keychain").Run()

	cmd := exec.Command("security", "add-trusted-cert", "-d", "-r", "trustRoot",
		"-p", "ssl", "-p", "basic", "-k", "/Library/Keychains/System.keychain", caPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("add CA to trust store (run with sudo?): %w", err)
	}

	fmt.Println("CA added to system trust store.")
	fmt.Println("https://*.localhost is now trusted.")
	return nil
}

func removeCADarwin(caPath string) error {
	fmt.Println("Removing CA from macOS system trust store...")
	cmd := exec.Command("security", "remove-trusted-cert", "-d", caPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("remove CA from trust store (run with sudo?): %w", err)
	}
	fmt.Println("CA removed from system trust store.")
	return nil
}

const linuxCADest = "/usr/local/share/ca-certificates/unport-ca.crt"

func addCALinux(caPath string) error {
	fmt.Println("Adding CA to Linux system trust store...")

	src, err := os.ReadFile(caPath)
	if err != nil {
		return fmt.Errorf("read CA certificate: %w", err)
	}
	if err := os.WriteFile(linuxCADest, src, 0o644); err != nil {
		return fmt.Errorf("copy CA certificate (run with sudo?): %w", err)
	}

	cmd := exec.Command("update-ca-certificates")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("update-ca-certificates: %w", err)
	}

	fmt.Println("CA added to system trust store.")
	fmt.Println("https://*.localhost is now trusted.")
	tryAddToFirefoxNSS(caPath)
	return nil
}

func removeCALinux() error {
	fmt.Println("Removing CA from Linux system trust store...")

	if fileExists(linuxCADest) {
		if err := os.Remove(linuxCADest); err != nil {
			return fmt.Errorf("remove CA certificate (run with sudo?): %w", err)
		}
	}

	cmd := exec.Command("update-ca-certificates")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("update-ca-certificates: %w", err)
	}

	fmt.Println("CA removed from system trust store.")
	return nil
}

// tryAddToFirefoxNSS best-effort installs the CA into every Firefox
// profile's NSS database. Firefox ignores the system trust store on
// Linux, so this is the only way to make it trust unport's certificates.
func tryAddToFirefoxNSS(caPath string) {
	if _, err := exec.LookPath("certutil"); err != nil {
		fmt.Println("Note: install libnss3-tools to trust the CA in Firefox.")
		return
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	firefoxDir := home + "/.mozilla/firefox"
	entries, err := os.ReadDir(firefoxDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		profile := firefoxDir + "/" + entry.Name()
		if !fileExists(profile + "/cert9.db") {
			continue
		}
		cmd := exec.Command("certutil", "-A", "-n", "unport CA", "-t", "C,,", "-i", caPath, "-d", profile)
		if err := cmd.Run(); err == nil {
			fmt.Printf("CA added to Firefox profile at %s\n", profile)
		}
	}
}
