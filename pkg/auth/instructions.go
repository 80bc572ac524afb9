package auth

import (
	"fmt"
	"strings"
)

// ShowAPIKeyGuide prints where to find an IdleMMO API key
func ShowAPIKeyGuide() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("IDLEMMO API KEY")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
	fmt.Println("1. Log in at https://web.idle-mmo.com")
	fmt.Println("2. Open Settings and select the API tab")
	fmt.Println("3. Create a key with access to the item and market endpoints")
	fmt.Println("4. Copy the key. It starts with \"idlemmo\"")
	fmt.Println()
	fmt.Println("The key is stored in your system keyring when one is available,")
	fmt.Println("otherwise in an encrypted file under your config directory.")
	fmt.Println("IDLEDATA_API_KEY or API_KEY in the environment take precedence.")
	fmt.Println()
	fmt.Println("Never share the key: it acts on behalf of your character.")
	fmt.Println(strings.Repeat("=", 72))
}
