// lottomon 接收端监视工具：从串口读取抽号机输出并按局打印
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tarm/serial"
	"github.com/wfunc/lotto-draw/internal/lotto"
)

var (
	device  = flag.String("d", "/dev/ttyUSB0", "串口设备")
	baud    = flag.Int("b", 9600, "波特率")
	timeout = flag.Duration("timeout", time.Second, "读超时")
	stdin   = flag.Bool("stdin", false, "从标准输入读取（用于回放抓包文件）")
)

func main() {
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("       抽号机串口监视")
	fmt.Println("========================================")

	var src io.Reader
	if *stdin {
		src = bufio.NewReader(os.Stdin)
	} else {
		checkDevice(*device)
		checkPermissions(*device)

		port, err := serial.OpenPort(&serial.Config{
			Name:        *device,
			Baud:        *baud,
			ReadTimeout: *timeout,
		})
		if err != nil {
			fmt.Printf("打开串口失败: %v\n", err)
			os.Exit(1)
		}
		defer port.Close()
		fmt.Printf("已打开 %s @ %d\n\n", *device, *baud)
		src = port
	}

	if err := monitor(src, os.Stdout); err != nil && err != io.EOF {
		fmt.Printf("读取失败: %v\n", err)
		os.Exit(1)
	}
}

func checkDevice(device string) {
	fmt.Printf("检查设备 %s ... ", device)
	if _, err := os.Stat(device); os.IsNotExist(err) {
		fmt.Println("❌ 不存在")
		os.Exit(1)
	}
	fmt.Println("✓ 存在")
}

func checkPermissions(device string) {
	fmt.Printf("检查权限 ... ")
	file, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		fmt.Println("❌ 无权限")
		fmt.Printf("   添加用户到dialout组: sudo usermod -a -G dialout %s\n", os.Getenv("USER"))
		os.Exit(1)
	}
	file.Close()
	fmt.Println("✓ 有读写权限")
}

// monitor 逐字节解码，串口读超时返回 0 字节时继续等待
func monitor(src io.Reader, out io.Writer) error {
	var (
		dec   lotto.StreamDecoder
		round int
		buf   = make([]byte, 64)
	)

	for {
		n, err := src.Read(buf)
		for _, b := range buf[:n] {
			item, derr := dec.Feed(b)
			ts := time.Now().Format("15:04:05.000")
			switch {
			case derr != nil:
				fmt.Fprintf(out, "[%s] ⚠️  无效字节 0x%02X\n", ts, b)
			case item.EndOfRound:
				if len(item.Round) == 0 {
					continue
				}
				round++
				status := "完成"
				if len(item.Round) < lotto.MaxDraws {
					status = "复位"
				}
				fmt.Fprintf(out, "[%s] 第 %d 局%s: %v\n", ts, round, status, item.Round)
			default:
				fmt.Fprintf(out, "[%s] 号码 %2d (0x%02X)\n", ts, item.Value, b)
			}
		}
		if err != nil {
			return err
		}
	}
}
